package server

import (
	"fmt"
	"slices"
	"strconv"
)

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// unmarshalPointsListFast parses a [[lat,lon],...] request body without
// reflection. Batch classify bodies run to millions of points, so the
// generic JSON path is too slow and too allocation-heavy here.
func unmarshalPointsListFast(data []byte, result *[][2]float64) error {
	i := 0
	n := len(data)

	*result = slices.Grow(*result, n/16) // n/16 is a heuristic

	for i < n && isSpace(data[i]) {
		i++
	}
	if i >= n || data[i] != '[' {
		return fmt.Errorf("invalid format: expected '['")
	}
	i++

	for i < n {
		for i < n && isSpace(data[i]) {
			i++
		}
		if i < n && data[i] == ']' {
			i++
			break
		}
		if i >= n || data[i] != '[' {
			return fmt.Errorf("invalid format: expected '[' for point")
		}
		i++

		var point [2]float64
		for j := 0; j < 2; j++ {
			for i < n && isSpace(data[i]) {
				i++
			}

			start := i
			for i < n && ((data[i] >= '0' && data[i] <= '9') ||
				data[i] == '-' || data[i] == '+' || data[i] == '.' ||
				data[i] == 'e' || data[i] == 'E') {
				i++
			}
			if start == i {
				return fmt.Errorf("invalid format: expected number")
			}
			num, err := strconv.ParseFloat(string(data[start:i]), 64)
			if err != nil {
				return fmt.Errorf("invalid number: %v", err)
			}
			point[j] = num

			for i < n && isSpace(data[i]) {
				i++
			}
			if j < 1 {
				if i >= n || data[i] != ',' {
					return fmt.Errorf("invalid format: expected ',' between coordinates")
				}
				i++
			}
		}

		if i >= n || data[i] != ']' {
			return fmt.Errorf("invalid format: expected ']' at end of point")
		}
		i++

		*result = append(*result, point)

		for i < n && isSpace(data[i]) {
			i++
		}
		if i < n && data[i] == ',' {
			i++
			continue
		}
		if i < n && data[i] == ']' {
			i++
			break
		}
	}

	return nil
}
