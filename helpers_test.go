package flowtree

import (
	"fmt"
	"math/rand"

	"github.com/pbanos/flowtree/dataset"
	"github.com/pbanos/flowtree/feature"
	"github.com/pbanos/flowtree/tree"
)

var (
	protoFeature = feature.NewDiscreteFeature("proto", nil)
	flagFeature  = feature.NewDiscreteFeature("flag", []string{"S", "A"})
	pktsFeature  = feature.NewContinuousFeature("pkts")
	bytesFeature = feature.NewContinuousFeature("bytes")
	classFeature = feature.NewDiscreteFeature("class", []string{"benign", "ddos"})
	testFeatures = []feature.Feature{protoFeature, flagFeature, pktsFeature, bytesFeature}
)

func newSample(proto string, pkts float64, class dataset.Class) dataset.Sample {
	return dataset.NewSample(map[string]interface{}{
		"proto": proto,
		"pkts":  pkts,
		"class": string(class),
	})
}

// scenarioDataset returns 50 benign tcp flows with few packets and 50
// ddos udp flows with many.
func scenarioDataset() dataset.Dataset {
	var samples []dataset.Sample
	for i := 0; i < 50; i++ {
		samples = append(samples, newSample("6", 10, dataset.Benign))
	}
	for i := 0; i < 50; i++ {
		samples = append(samples, newSample("17", 500, dataset.DDoS))
	}
	return dataset.New(samples)
}

// randomSamples returns n noisy labeled flows generated from the given seed.
func randomSamples(seed int64, n int) []dataset.Sample {
	r := rand.New(rand.NewSource(seed))
	protos := []string{"1", "6", "17"}
	flags := []string{"S", "A"}
	samples := make([]dataset.Sample, 0, n)
	for i := 0; i < n; i++ {
		proto := protos[r.Intn(len(protos))]
		flag := flags[r.Intn(len(flags))]
		pkts := float64(r.Intn(1000))
		bytes := float64(r.Intn(100000))
		class := dataset.Benign
		if (proto == "17" && pkts > 300) || (flag == "S" && bytes < 20000) {
			class = dataset.DDoS
		}
		if r.Float64() < 0.1 {
			if class == dataset.Benign {
				class = dataset.DDoS
			} else {
				class = dataset.Benign
			}
		}
		samples = append(samples, dataset.NewSample(map[string]interface{}{
			"proto": proto,
			"flag":  flag,
			"pkts":  pkts,
			"bytes": bytes,
			"class": string(class),
		}))
	}
	return samples
}

// pathFeatures returns the names of the features tested by the decisions
// from the root down to the node with the given ID.
func pathFeatures(t *tree.Tree, id tree.NodeID) []string {
	var names []string
	for n := t.Node(id); n != nil; n = t.Node(n.Parent()) {
		if d, ok := n.(*tree.Decision); ok {
			names = append(names, d.Criterion.Feature().Name())
		}
		if n.Parent() == tree.NoParent {
			break
		}
	}
	return names
}

func mustTree(draft *tree.Draft) *tree.Tree {
	t, err := tree.New(classFeature, draft)
	if err != nil {
		panic(fmt.Sprintf("building tree: %v", err))
	}
	return t
}
