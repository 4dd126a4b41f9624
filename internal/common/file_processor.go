package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"atsmatch/internal/errors"
	"atsmatch/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger      *errors.Logger
	maxFileSize int64
}

// NewFileProcessor creates a file processor. maxFileSize bounds every input
// file; zero disables the limit.
func NewFileProcessor(logger *errors.Logger, maxFileSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, maxFileSize: maxFileSize}
}

// ReadFile reads the raw bytes of a file
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil && fp.logger != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return content, nil
}

// WriteFile writes content to a file, creating its directory
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ReadResume validates and reads a resume document of any supported kind
func (fp *FileProcessor) ReadResume(filename string) ([]byte, error) {
	if err := fp.validate(filename); err != nil {
		return nil, err
	}

	if !utils.IsResumeFile(filename) && fp.logger != nil {
		fp.logger.Warn("Resume extension not recognized, detecting from content", "filename", filename)
	}

	return fp.ReadFile(filename)
}

// ReadText validates and reads a plain-text file such as a job description
func (fp *FileProcessor) ReadText(filename string) (string, error) {
	if err := fp.validate(filename); err != nil {
		return "", err
	}

	if !utils.IsTextFile(filename) && fp.logger != nil {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}

	content, err := fp.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (fp *FileProcessor) validate(filename string) error {
	if err := utils.ValidateInputFile(filename, fp.maxFileSize); err != nil {
		code := "INVALID_INPUT_FILE"
		if info, statErr := os.Stat(filename); statErr == nil && fp.maxFileSize > 0 && info.Size() > fp.maxFileSize {
			code = errors.ErrCodeFileTooLarge
		}
		return errors.NewValidationError(code, fmt.Sprintf("Invalid file %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
