package forecast

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadWeights reads precomputed blend weights from a CSV file with a
// "window,weight" header.
func LoadWeights(path string) (map[string]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer file.Close()
	return ReadWeights(file)
}

// ReadWeights parses "window,weight" rows from r.
func ReadWeights(r io.Reader) (map[string]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read weights header: %w", err)
	}
	windowCol, weightCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "window":
			windowCol = i
		case "weight":
			weightCol = i
		}
	}
	if windowCol < 0 || weightCol < 0 {
		return nil, fmt.Errorf("weights header %v must contain window and weight", header)
	}

	weights := make(map[string]float64)
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read weights line %d: %w", line, err)
		}
		label := strings.TrimSpace(rec[windowCol])
		w, err := strconv.ParseFloat(strings.TrimSpace(rec[weightCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("weights line %d: %w", line, err)
		}
		if _, dup := weights[label]; dup {
			return nil, fmt.Errorf("weights line %d: duplicate window %q", line, label)
		}
		weights[label] = w
	}
	return weights, nil
}
