package flowtree

import (
	"math"

	"github.com/pbanos/flowtree/dataset"
)

/*
Entropy takes the number of records of each class in a set and returns
the binary Shannon entropy of the set in bits. An empty set or one with
a single class has entropy 0, a set with as many records of each class
has entropy 1.
*/
func Entropy(n, m int) float64 {
	total := n + m
	if total == 0 || n == 0 || m == 0 {
		return 0
	}
	p := float64(n) / float64(total)
	q := float64(m) / float64(total)
	return -p*math.Log2(p) - q*math.Log2(q)
}

/*
WeightedEntropy takes the class counts of the two sides of a split and
returns the entropy of each side weighted by its share of the records.
*/
func WeightedEntropy(left, right dataset.ClassCounts) float64 {
	total := left.Total() + right.Total()
	if total == 0 {
		return 0
	}
	return float64(left.Total())/float64(total)*countsEntropy(left) +
		float64(right.Total())/float64(total)*countsEntropy(right)
}

func countsEntropy(cc dataset.ClassCounts) float64 {
	return Entropy(cc.Benign, cc.DDoS)
}
