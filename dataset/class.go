package dataset

import (
	"fmt"
	"strings"
)

// Class is the label of a flow record.
type Class string

const (
	// Benign is the class of legitimate traffic. It is the first class of
	// the binary problem and wins majority ties.
	Benign Class = "benign"
	// DDoS is the class of attack traffic.
	DDoS Class = "ddos"
)

// Classes lists the classes of the problem in their canonical order.
var Classes = []Class{Benign, DDoS}

/*
ParseClass takes a label string and returns the Class it names. The
label is trimmed and compared case-insensitively. Any label other than
benign or ddos results in an error.
*/
func ParseClass(label string) (Class, error) {
	switch Class(strings.ToLower(strings.TrimSpace(label))) {
	case Benign:
		return Benign, nil
	case DDoS:
		return DDoS, nil
	}
	return "", fmt.Errorf("unknown class %q", label)
}

// ClassCounts holds the number of records of each class in a set.
type ClassCounts struct {
	Benign int
	DDoS   int
}

// Add takes a class and returns the counts with one more record of it.
func (cc ClassCounts) Add(c Class) ClassCounts {
	switch c {
	case Benign:
		cc.Benign++
	case DDoS:
		cc.DDoS++
	}
	return cc
}

// Plus returns the sum of both counts.
func (cc ClassCounts) Plus(o ClassCounts) ClassCounts {
	return ClassCounts{Benign: cc.Benign + o.Benign, DDoS: cc.DDoS + o.DDoS}
}

// Minus returns the difference of both counts.
func (cc ClassCounts) Minus(o ClassCounts) ClassCounts {
	return ClassCounts{Benign: cc.Benign - o.Benign, DDoS: cc.DDoS - o.DDoS}
}

// Total returns the number of records counted.
func (cc ClassCounts) Total() int {
	return cc.Benign + cc.DDoS
}

// Of returns the count for the given class.
func (cc ClassCounts) Of(c Class) int {
	switch c {
	case Benign:
		return cc.Benign
	case DDoS:
		return cc.DDoS
	}
	return 0
}

// Pure returns whether at most one class has records.
func (cc ClassCounts) Pure() bool {
	return cc.Benign == 0 || cc.DDoS == 0
}

// Majority returns the class with most records. Ties, including the
// empty counts, resolve to Benign.
func (cc ClassCounts) Majority() Class {
	if cc.Benign >= cc.DDoS {
		return Benign
	}
	return DDoS
}

func (cc ClassCounts) String() string {
	return fmt.Sprintf("[%d+,%d-]", cc.Benign, cc.DDoS)
}
