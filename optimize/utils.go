package optimize

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ReadFloats parses whitespace separated floats.
func ReadFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	result := make([]float64, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return result, err
		}
		result = append(result, x)
	}
	return result, nil
}

// ReadTrajectoryEnd reads a trajectory written by a sampler or an
// optimizer and returns the values of its last line by name. The
// iteration and logprob columns are skipped.
func ReadTrajectoryEnd(r io.Reader) (map[string]float64, error) {
	var header, last string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if header == "" {
			header = scanner.Text()
		}
		last = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	names := strings.Split(header, "\t")
	values, err := ReadFloats(last)
	if err != nil {
		return nil, err
	}
	if len(names) != len(values) || len(names) < 2 {
		return nil, errors.New("trajectory header doesn't match the last line")
	}
	res := make(map[string]float64, len(names)-2)
	for i, name := range names[2:] {
		res[name] = values[i+2]
	}
	return res, nil
}
