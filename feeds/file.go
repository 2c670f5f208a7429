package feeds

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tickforge/straddlebot/types"
)

// ReadTicksJSONL loads a recorded tick stream, one JSON tick per line. Blank
// lines are skipped; a malformed line is an error with its line number.
func ReadTicksJSONL(path string) ([]types.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	defer f.Close()
	return DecodeTicksJSONL(f)
}

// DecodeTicksJSONL parses JSONL ticks from a reader.
func DecodeTicksJSONL(r io.Reader) ([]types.Tick, error) {
	var ticks []types.Tick
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var tick types.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			return nil, fmt.Errorf("tick file line %d: %w", line, err)
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			return nil, fmt.Errorf("tick file line %d: missing symbol or non-positive price", line)
		}
		ticks = append(ticks, tick)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tick file: %w", err)
	}
	return ticks, nil
}
