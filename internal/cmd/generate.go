package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/output"
	"github.com/photofx/photofx/internal/prompt"
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a background image",
	Long: `Generate a portrait background through the AI gateway using the same
validation and instruction template as the HTTP endpoint. Session checks and
per-client rate limits do not apply to local runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("prompt-file", "f", "", "Read the prompt from a file")
	generateCmd.Flags().String("model", "", "Model override")
	generateCmd.Flags().String("image-out", "", "Decode a data URL result and write the image to this path")
	generateCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	generateCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	generateCmd.Flags().String("out-dir", "", "Write output to a directory")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	text, err := generatePromptInput(cmd, args)
	if err != nil {
		return err
	}
	validation := prompt.Validate(text)
	if !validation.Valid {
		return errors.New(validation.Error)
	}

	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if modelOverride, _ := cmd.Flags().GetString("model"); strings.TrimSpace(modelOverride) != "" {
		cfg.Gateway.Model = modelOverride
	}

	client := newGatewayClient(cfg)
	result, err := client.GenerateImage(ctx, prompt.BuildInstruction(validation.Sanitized))
	if err != nil {
		if pe, ok := gateway.AsProviderError(err); ok {
			switch {
			case pe.RateLimited():
				return fmt.Errorf("gateway rate limit exceeded: %w", err)
			case pe.QuotaExhausted():
				return fmt.Errorf("gateway credits exhausted: %w", err)
			}
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	if imageOut, _ := cmd.Flags().GetString("image-out"); strings.TrimSpace(imageOut) != "" {
		if err := writeDataURL(result.ImageURL, imageOut); err != nil {
			return err
		}
	}

	outPath, err := resolveOutputPath(cmd, format, sanitizeFilename(validation.Sanitized))
	if err != nil {
		return err
	}

	rendered, err := output.FormatGeneration(format, result)
	if err != nil {
		return err
	}
	return writeRendered(cmd, outPath, rendered)
}

func generatePromptInput(cmd *cobra.Command, args []string) (string, error) {
	promptFile, _ := cmd.Flags().GetString("prompt-file")
	switch {
	case len(args) == 1 && strings.TrimSpace(promptFile) != "":
		return "", errors.New("pass the prompt as an argument or with --prompt-file, not both")
	case len(args) == 1:
		return args[0], nil
	case strings.TrimSpace(promptFile) != "":
		content, err := readPromptFile(promptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return content, nil
	default:
		return "", errors.New("a prompt is required")
	}
}

// maxPromptFileBytes bounds how much of a prompt file is read. Anything
// larger is reported as too long without reading the rest.
const maxPromptFileBytes = 64 << 10

// readPromptFile returns the file contents, or the validator's too-long
// error when the file exceeds maxPromptFileBytes.
func readPromptFile(path string) (result string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	data, err := io.ReadAll(io.LimitReader(f, maxPromptFileBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxPromptFileBytes {
		return "", errors.New(prompt.TooLong().Error)
	}
	return string(data), nil
}

// decodeDataURL extracts the payload of a base64 data URL.
func decodeDataURL(url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, "", errors.New("image is not a data URL")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data URL")
	}
	mediaType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("unsupported data URL encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return data, mediaType, nil
}

func writeDataURL(url, path string) error {
	data, _, err := decodeDataURL(url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
