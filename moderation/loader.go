package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// Dictionary carries the merged word list plus the languages it came from,
// for the startup log line.
type Dictionary struct {
	Words     []string
	Languages []string
}

// LoadDictionary reads every embedded .txt dictionary (one word per line,
// filename is the language) and merges them into a unique word list.
func LoadDictionary() (*Dictionary, error) {
	entries, err := fs.ReadDir(censoredFS, "censored")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := censoredFS.ReadFile("censored/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// A scanner copes with \r\n line endings, strings.Split does not.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueWords[strings.ToLower(line)] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, fmt.Errorf("no censored words loaded")
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}
	return &Dictionary{Words: words, Languages: languages}, nil
}
