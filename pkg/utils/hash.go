package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashFile computes the SHA256 hash of the full file content
func HashFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashFileQuick computes a SHA256 hash of the first and last chunks of a
// file. It is only meaningful between files of equal size, and equal quick
// hashes do not prove equal content; callers must confirm with HashFile.
func HashFileQuick(filepath string, chunkSize int64) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return "", err
	}

	fileSize := fileInfo.Size()
	hash := sha256.New()

	if fileSize <= chunkSize*2 {
		if _, err := io.Copy(hash, file); err != nil {
			return "", err
		}
		return hex.EncodeToString(hash.Sum(nil)), nil
	}

	chunk := make([]byte, chunkSize)
	if _, err := io.ReadFull(file, chunk); err != nil {
		return "", err
	}
	hash.Write(chunk)

	if _, err := file.Seek(-chunkSize, io.SeekEnd); err != nil {
		return "", err
	}
	if _, err := io.ReadFull(file, chunk); err != nil {
		return "", err
	}
	hash.Write(chunk)

	return hex.EncodeToString(hash.Sum(nil)), nil
}
