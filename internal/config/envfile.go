package config

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// scanEnvFile looks for a line of the form `export <name>=<value>` in a
// shell rc file and returns the value with surrounding quotes stripped.
// The file may contain arbitrary shell syntax; anything that does not
// match the exported assignment form is skipped. A missing file is not an
// error, the key is simply absent.
func scanEnvFile(path, name string) (string, error) {
	if path == "" {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	prefix := "export " + name + "="

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		value = strings.Trim(value, "'\"")
		return value, nil
	}

	return "", scanner.Err()
}
