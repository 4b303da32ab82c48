package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_type,
                      device_id,
                      simulated,
                      config)
VALUES (?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    simulated,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    simulated,
    config
FROM sessions
ORDER BY start_time, id`

	insertMessageSQL = `
INSERT INTO messages (
                      session_id,
                      timestamp,
                      type,
                      read_number,
                      center_freq,
                      sample_rate,
                      simulated,
                      payload)
VALUES `

	insertMessageValuesSQL = "(?, ?, ?, ?, ?, ?, ?, ?)"

	selectMessagesSQL = `
SELECT
    payload
FROM messages
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?`

	countMessagesSQL = `
SELECT
    COUNT(*)
FROM messages
WHERE
    session_id = ?`
)

//go:embed schema.sql
var initSchemaSQL string

//go:embed indexes.sql
var initIndexesSQL string
