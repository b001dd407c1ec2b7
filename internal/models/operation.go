package models

import (
	"fmt"
	"strings"
)

// Operation identifies one step of a processing chain
type Operation int

const (
	Threshold Operation = iota
	Dilate
	Erode
	Open
	Close
)

var operationNames = map[Operation]string{
	Threshold: "threshold",
	Dilate:    "dilate",
	Erode:     "erode",
	Open:      "open",
	Close:     "close",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// IsMorphological reports whether the operation uses a structuring element
func (op Operation) IsMorphological() bool {
	return op == Dilate || op == Erode || op == Open || op == Close
}

// ParseOperation accepts the lowercase names used in configuration files
// and on the command line. A few common synonyms are accepted.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "threshold", "seuillage", "binarize":
		return Threshold, nil
	case "dilate", "dilation":
		return Dilate, nil
	case "erode", "erosion":
		return Erode, nil
	case "open", "opening":
		return Open, nil
	case "close", "closing":
		return Close, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// ParseOperations parses a list of operation names, failing on the first
// unknown entry
func ParseOperations(names []string) ([]Operation, error) {
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		op, err := ParseOperation(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
