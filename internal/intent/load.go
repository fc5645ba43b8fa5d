package intent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// LoadBatch reads an ordered batch of intents from a JSONL file, one
// intent per line. Blank lines are skipped. A line that fails to parse
// becomes a TypeMalformed intent carrying the parse error, so a single
// bad line degrades to one failed result instead of aborting the
// batch.
func LoadBatch(path string) ([]Intent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intents file: %w", err)
	}
	defer f.Close()
	return ReadBatch(f)
}

// ReadBatch parses JSONL intents from r. See LoadBatch.
func ReadBatch(r io.Reader) ([]Intent, error) {
	var batch []Intent

	scanner := bufio.NewScanner(r)
	// Intent bodies can approach the 64 KiB content limit; give the
	// scanner room beyond its default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var it Intent
		if err := json.Unmarshal([]byte(line), &it); err != nil {
			log.Warn().Int("line", lineNo).Err(err).Msg("Skipping malformed intent line")
			batch = append(batch, Intent{
				Type:       TypeMalformed,
				ParseError: fmt.Sprintf("line %d: %v", lineNo, err),
			})
			continue
		}
		if it.Type == "" {
			batch = append(batch, Intent{
				Type:       TypeMalformed,
				ParseError: fmt.Sprintf("line %d: missing type field", lineNo),
			})
			continue
		}
		if !Known(it.Type) {
			it.RawType = string(it.Type)
			it.Type = TypeUnknown
		}
		batch = append(batch, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read intents: %w", err)
	}

	log.Debug().Int("count", len(batch)).Msg("Loaded intent batch")
	return batch, nil
}
