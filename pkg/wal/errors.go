package wal

import "errors"

var (
	// ErrUnableToCreateFile is returned when a log file cannot be created.
	ErrUnableToCreateFile = errors.New("unable to create log file")

	// ErrUnableToWriteLogFile is returned when an append or flush fails.
	// The write is not retried.
	ErrUnableToWriteLogFile = errors.New("unable to write log file")

	// ErrUnableToReadLogFile is returned when replay cannot read from a
	// log file, including a file that ends in the middle of a record.
	ErrUnableToReadLogFile = errors.New("unable to read log file")

	// ErrUnableToReadDir is returned when the log directory cannot be
	// enumerated.
	ErrUnableToReadDir = errors.New("unable to read log directory")

	// ErrUnableToTruncateLogFile is returned when deleting a log file
	// fails. The file leaks until the next attempt.
	ErrUnableToTruncateLogFile = errors.New("unable to truncate log file")

	// ErrUnexpectedChunkCRC is returned when a chunk fails its checksum
	// or cannot be framed; the log is corrupt from that point on.
	ErrUnexpectedChunkCRC = errors.New("unexpected chunk crc")

	// ErrMalformedRecord is returned when a reassembled record payload
	// cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")
)
