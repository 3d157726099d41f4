package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/tts/voices"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFilePermissions = 0o600

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), testFilePermissions))

	return path
}

// writeConfig writes a configuration that keeps logs and preferences inside
// the test directory.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()

	content := `[paths]
base_logs_dir = "` + filepath.ToSlash(dir) + `"

[preferences]
backend = "memory"
` + extra

	return writeFile(t, dir, "read-aloud.toml", content)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := newRootCmd()

	var output bytes.Buffer

	rootCmd.SetOut(&output)
	rootCmd.SetErr(&output)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return output.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, dir, "")
	envPath := filepath.Join(dir, "missing.env")

	tests := []struct {
		name     string
		article  string
		override string
		want     string
	}{
		{
			name:    "markdown and phonetics",
			article: "# Getting started\n\nInstall with `npm i` and call the **REST API**.",
			want:    "Getting started\n\nInstall with  and call the rest A P I.\n",
		},
		{
			name:     "override replaces the body",
			article:  "# Ignored",
			override: "Deploy *C#* services on AWS.",
			want:     "Deploy C sharp services on A W S.\n",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			caseDir := t.TempDir()
			args := []string{
				"normalize", writeFile(t, caseDir, "article.md", testCase.article),
				"--config", configPath, "--env", envPath,
			}

			if testCase.override != "" {
				args = append(args, "--override", writeFile(t, caseDir, "speech.txt", testCase.override))
			}

			output, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, output)
		})
	}
}

func TestNormalizeCommand_ConfiguredRules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, dir, `
[[normalizer.rules]]
pattern = "Kotlin"
replacement = "cot lin"
`)

	output, err := execute(t,
		"normalize", writeFile(t, dir, "article.md", "Kotlin and JSON"),
		"--config", configPath, "--env", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "cot lin and jason\n", output)
}

func TestNormalizeCommand_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, dir, "")
	envPath := filepath.Join(dir, "missing.env")

	_, err := execute(t, "normalize", filepath.Join(dir, "absent.md"), "--config", configPath, "--env", envPath)
	require.Error(t, err)

	_, err = execute(t, "normalize", writeFile(t, dir, "code.md", "```\nonly code\n```"),
		"--config", configPath, "--env", envPath)
	require.ErrorIs(t, err, errNothingToSpeak)

	_, err = execute(t, "normalize", "--config", configPath, "--env", envPath)
	require.Error(t, err, "a file argument is required")

	badConfig := writeFile(t, dir, "bad.toml", "[speech]\nrate = 50.0\n")
	_, err = execute(t, "normalize", writeFile(t, dir, "ok.md", "text"), "--config", badConfig, "--env", envPath)
	require.Error(t, err)
}

func TestReadArticle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := writeFile(t, dir, "body.md", "body")
	speech := writeFile(t, dir, "speech.txt", "spoken")

	article, err := readArticle(body, "")
	require.NoError(t, err)
	assert.Equal(t, core.Article{Content: "body"}, article)

	article, err = readArticle(body, speech)
	require.NoError(t, err)
	assert.Equal(t, core.Article{Content: "body", SpeechOverride: "spoken"}, article)

	_, err = readArticle(body, filepath.Join(dir, "absent.txt"))
	require.Error(t, err)
}

func TestPrintCatalog(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&output)

	catalog := voices.NewCatalog([]core.Voice{
		{ID: "en-gb", Name: "English (Great Britain)", Language: "en-gb"},
		{ID: "fr-fr", Name: "French (France)", Language: "fr-fr"},
	})

	require.NoError(t, printCatalog(cmd, catalog, "fr-fr"))

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "LANGUAGE")
	assert.True(t, strings.HasPrefix(lines[1], " "))
	assert.Contains(t, lines[1], "en-gb")
	assert.True(t, strings.HasPrefix(lines[2], "*"))
	assert.Contains(t, lines[2], "French (France)")
}

func TestServeAndPublish_RequireNATSSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeConfig(t, dir, "")
	envPath := filepath.Join(dir, "missing.env")

	_, err := execute(t, "serve", "--config", configPath, "--env", envPath)
	require.ErrorIs(t, err, errSubjectEmpty)

	_, err = execute(t, "publish", "key", writeFile(t, dir, "a.md", "text"), "--config", configPath, "--env", envPath)
	require.ErrorIs(t, err, errBucketEmpty)
}
