package dataset

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
)

// Label is one parsed YOLO label record.
type Label struct {
	ClassID int
	// Box is [x_center, y_center, width, height], normalized to [0, 1].
	Box [4]float32
}

// ParseLabel parses a whitespace-separated "class_id x y w h" line.
//
// Tokens after the fifth are ignored. The class id must be an integer and
// each box value a finite number; ranges are not checked.
func ParseLabel(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Label{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected 5 tokens, got %d", len(fields))}
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, &ParseError{Line: line, Reason: fmt.Sprintf("class_id %q is not an integer", fields[0])}
	}

	var label Label
	label.ClassID = classID
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Label{}, &ParseError{Line: line, Reason: fmt.Sprintf("box value %q is not a finite number", fields[i+1])}
		}
		label.Box[i] = float32(v)
	}
	return label, nil
}

// String formats the label back into the "class_id x y w h" layout.
func (l Label) String() string {
	parts := make([]string, 0, 5)
	parts = append(parts, strconv.Itoa(l.ClassID))
	for _, v := range l.Box {
		parts = append(parts, strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return strings.Join(parts, " ")
}

// ReadLabelFile parses the first line of the label file at path.
func ReadLabelFile(path string) (Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Label{}, fmt.Errorf("%w: label file %s", ErrNotFound, path)
		}
		return Label{}, fmt.Errorf("failed to read label file %s: %w", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := ""
	if scanner.Scan() {
		line = scanner.Text()
	}
	label, err := ParseLabel(line)
	if err != nil {
		return Label{}, fmt.Errorf("%s: %w", path, err)
	}
	return label, nil
}
