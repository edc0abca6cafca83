package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/narrator"
)

// ResolveDirectory checks that dirPath exists and is a directory, then
// returns its absolute path.
func ResolveDirectory(dirPath string) (string, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("directory not found: %s", dirPath)
		}
		return "", fmt.Errorf("failed to access directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", dirPath)
	}

	if absPath, err := filepath.Abs(dirPath); err == nil {
		dirPath = absPath
	}
	return dirPath, nil
}

// ValidateAndResolveDirectory is ResolveDirectory that exits fatally on
// failure.
func ValidateAndResolveDirectory(dirPath string) string {
	resolved, err := ResolveDirectory(dirPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dirPath).Msg("Invalid photo directory")
	}
	return resolved
}

// HandleValidationError processes narrator.ValidationError and exits with appropriate messaging.
func HandleValidationError(err error) {
	var validationErr *narrator.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case narrator.ErrTypeNoKey:
			log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY")
		case narrator.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case narrator.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
		case narrator.ErrTypeQuotaExceeded:
			log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error during API key validation")
	}
	os.Exit(1)
}
