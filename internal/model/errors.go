package model

import "fmt"

// InvalidFileTypeError is returned when an upload's extension is not a
// supported video format. No job record is created for these uploads.
type InvalidFileTypeError struct {
	FileType string
}

func (e *InvalidFileTypeError) Error() string {
	return fmt.Sprintf("file type '%s' is not supported", e.FileType)
}

// FileSizeLimitExceededError is returned when an upload exceeds the
// configured maximum input size. No job record is created for these uploads.
type FileSizeLimitExceededError struct {
	FileSize int64
	MaxSize  int64
}

func (e *FileSizeLimitExceededError) Error() string {
	return fmt.Sprintf("file size (%d) exceeds the maximum limit of %d bytes", e.FileSize, e.MaxSize)
}

// ConversionError reports a failure of the external conversion tool. Message
// carries the tool's diagnostic output when available.
type ConversionError struct {
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConversionError) Unwrap() error { return e.Err }

// StorageError reports a filesystem failure during a storage operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
