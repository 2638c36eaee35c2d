package flowtree

import (
	"math"
	"testing"

	"github.com/pbanos/flowtree/dataset"
)

func TestEntropy(t *testing.T) {
	testCases := []struct {
		n, m int
		want float64
	}{
		{0, 0, 0},
		{7, 0, 0},
		{0, 7, 0},
		{5, 5, 1},
		{1, 3, 0.8112781244591328},
	}
	for _, tc := range testCases {
		got := Entropy(tc.n, tc.m)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Entropy(%d, %d): want %v, got %v", tc.n, tc.m, tc.want, got)
		}
	}
}

func TestEntropy_Symmetric(t *testing.T) {
	for n := 0; n < 20; n++ {
		for m := 0; m < 20; m++ {
			if Entropy(n, m) != Entropy(m, n) {
				t.Fatalf("Entropy(%d, %d) = %v differs from Entropy(%d, %d) = %v", n, m, Entropy(n, m), m, n, Entropy(m, n))
			}
		}
	}
}

func TestWeightedEntropy(t *testing.T) {
	left := dataset.ClassCounts{Benign: 3, DDoS: 1}
	right := dataset.ClassCounts{Benign: 0, DDoS: 4}
	want := 0.5 * Entropy(3, 1)
	if got := WeightedEntropy(left, right); math.Abs(got-want) > 1e-12 {
		t.Errorf("want %v, got %v", want, got)
	}
	if got := WeightedEntropy(dataset.ClassCounts{}, dataset.ClassCounts{}); got != 0 {
		t.Errorf("empty sides: want 0, got %v", got)
	}
}
