package db

// SchemaSQL defines the quota table. Record IDs are the configured quota key.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS quota SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS searches ON quota TYPE int;
    DEFINE FIELD IF NOT EXISTS window_start ON quota TYPE int;
    DEFINE FIELD IF NOT EXISTS updated ON quota TYPE datetime DEFAULT time::now();
`
