package dataset

import (
	"context"
	"testing"

	"github.com/pbanos/flowtree/feature"
)

var (
	protoFeature = feature.NewDiscreteFeature("proto", nil)
	pktsFeature  = feature.NewContinuousFeature("pkts")
	classFeature = feature.NewDiscreteFeature("class", []string{"benign", "ddos"})
)

func testSamples() []Sample {
	return []Sample{
		NewSample(map[string]interface{}{"proto": "6", "pkts": 10.0, "class": "benign"}),
		NewSample(map[string]interface{}{"proto": "17", "pkts": 500.0, "class": "ddos"}),
		NewSample(map[string]interface{}{"proto": "6", "class": "ddos"}),
		NewSample(map[string]interface{}{"proto": "1", "pkts": 20.0, "class": "benign"}),
	}
}

func TestParseClass(t *testing.T) {
	testCases := map[string]Class{" Benign ": Benign, "DDOS": DDoS, "ddos": DDoS}
	for label, expected := range testCases {
		if c, err := ParseClass(label); err != nil || c != expected {
			t.Errorf("expected ParseClass(%q) to be %s, got %s, %v", label, expected, c, err)
		}
	}
	if _, err := ParseClass("attack"); err == nil {
		t.Errorf("expected an error parsing an unknown class")
	}
}

func TestClassCounts(t *testing.T) {
	var cc ClassCounts
	if cc.Majority() != Benign || !cc.Pure() || cc.Total() != 0 {
		t.Errorf("unexpected empty counts behaviour %v", cc)
	}
	cc = cc.Add(DDoS).Add(Benign)
	if cc.Majority() != Benign || cc.Pure() {
		t.Errorf("expected a tie to resolve to benign on impure counts, got %v", cc)
	}
	cc = cc.Add(DDoS)
	if cc.Majority() != DDoS || cc.Of(DDoS) != 2 || cc.Total() != 3 {
		t.Errorf("unexpected counts %v", cc)
	}
	if d := cc.Minus(ClassCounts{DDoS: 2}); d != (ClassCounts{Benign: 1}) || !d.Pure() {
		t.Errorf("unexpected difference %v", d)
	}
	if cc.String() != "[1+,2-]" {
		t.Errorf("unexpected string %s", cc.String())
	}
}

func TestClassOf(t *testing.T) {
	s := NewSample(map[string]interface{}{"class": "DDoS"})
	if c, err := ClassOf(s, classFeature); err != nil || c != DDoS {
		t.Errorf("expected ddos, got %s, %v", c, err)
	}
	if _, err := ClassOf(NewSample(nil), classFeature); err == nil {
		t.Errorf("expected an error for a sample without label")
	}
}

func TestDatasets(t *testing.T) {
	ctx := context.Background()
	implementations := map[string]func([]Sample) Dataset{
		"memory intensive": NewMemoryIntensive,
		"cpu intensive":    NewCPUIntensive,
	}
	for name, newDataset := range implementations {
		t.Run(name, func(t *testing.T) {
			ds := newDataset(testSamples())
			if n, err := ds.Count(ctx); err != nil || n != 4 {
				t.Fatalf("expected 4 samples, got %d, %v", n, err)
			}
			cc, err := ds.ClassCounts(ctx, classFeature)
			if err != nil || cc != (ClassCounts{Benign: 2, DDoS: 2}) {
				t.Errorf("unexpected class counts %v, %v", cc, err)
			}
			values, err := ds.FeatureValues(ctx, protoFeature)
			if err != nil || len(values) != 3 || values[0] != "6" || values[1] != "17" || values[2] != "1" {
				t.Errorf("expected proto values in order of appearance, got %v, %v", values, err)
			}
			values, err = ds.FeatureValues(ctx, pktsFeature)
			if err != nil || len(values) != 3 {
				t.Errorf("expected undefined pkts to be skipped, got %v, %v", values, err)
			}
			crit := feature.NewContinuousCriterion(pktsFeature, 100)
			left, err := ds.SubsetWith(ctx, crit)
			if err != nil {
				t.Fatal(err)
			}
			right, err := ds.SubsetWithout(ctx, crit)
			if err != nil {
				t.Fatal(err)
			}
			if cc, _ := left.ClassCounts(ctx, classFeature); cc != (ClassCounts{Benign: 2}) {
				t.Errorf("unexpected left subset counts %v", cc)
			}
			if cc, _ := right.ClassCounts(ctx, classFeature); cc != (ClassCounts{DDoS: 2}) {
				t.Errorf("expected undefined values on the right subset, got counts %v", cc)
			}
			nested, err := left.SubsetWith(ctx, feature.NewDiscreteCriterion(protoFeature, "6"))
			if err != nil {
				t.Fatal(err)
			}
			if n, _ := nested.Count(ctx); n != 1 {
				t.Errorf("expected 1 sample on nested subset, got %d", n)
			}
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			if _, err := right.Samples(cctx); name == "cpu intensive" && err != context.Canceled {
				t.Errorf("expected a cancelled context to stop iteration, got %v", err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(testSamples()).(*memoryIntensiveSubsettingDataset); !ok {
		t.Errorf("expected a memory intensive dataset for few samples")
	}
	many := make([]Sample, sampleCountThresholdForDatasetImplementation+1)
	if _, ok := New(many).(*cpuIntensiveSubsettingDataset); !ok {
		t.Errorf("expected a cpu intensive dataset for many samples")
	}
}
