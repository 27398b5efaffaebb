package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"iotdetect/flow"
	"iotdetect/ml"
)

const version = "demo-1"

func main() {
	detectorPath := flag.String("detector", "./models/iot_traffic_attack_detector.json.gz", "detector artifact output path")
	classifierPath := flag.String("classifier", "./models/iot_traffic_attack_classifier.json.gz", "classifier artifact output path")
	evalPath := flag.String("eval", "", "optional labelled CSV (12 features then class) to score the artifacts against")
	flag.Parse()

	if err := ml.WriteArtifact(*detectorPath, detectorArtifact()); err != nil {
		log.Fatalf("failed to write detector: %v", err)
	}
	fmt.Printf("detector saved to %s\n", *detectorPath)

	if err := ml.WriteArtifact(*classifierPath, classifierArtifact()); err != nil {
		log.Fatalf("failed to write classifier: %v", err)
	}
	fmt.Printf("classifier saved to %s\n", *classifierPath)

	if *evalPath == "" {
		return
	}
	features, labels, err := readDataset(*evalPath)
	if err != nil {
		log.Fatalf("failed to read dataset: %v", err)
	}
	detector, _, err := ml.LoadModel(*detectorPath, flow.NumFeatures)
	if err != nil {
		log.Fatalf("failed to load detector: %v", err)
	}
	classifier, _, err := ml.LoadModel(*classifierPath, flow.NumFeatures)
	if err != nil {
		log.Fatalf("failed to load classifier: %v", err)
	}

	binary := make([]int, len(labels))
	for i, label := range labels {
		if label != int(flow.Benign) {
			binary[i] = 1
		}
	}
	accuracy, precision, recall := evaluateModel(detector, features, binary, 1)
	log.Printf("detector accuracy=%.2f precision=%.2f recall=%.2f", accuracy, precision, recall)
	for c := flow.Benign; c <= flow.WebBased; c++ {
		accuracy, precision, recall = evaluateModel(classifier, features, labels, int(c))
		log.Printf("classifier %-10s accuracy=%.2f precision=%.2f recall=%.2f", c.Name(), accuracy, precision, recall)
	}
}

// split is a tree under construction; flatten lays it out so that every
// child comes after its parent.
type split struct {
	feature     int
	threshold   float64
	left, right *split
	class       int
	leaf        bool
}

func leaf(c flow.Category) *split { return &split{class: int(c), leaf: true} }

func node(feature int, threshold float64, left, right *split) *split {
	return &split{feature: feature, threshold: threshold, left: left, right: right}
}

func flatten(s *split) []ml.TreeNode {
	var nodes []ml.TreeNode
	var walk func(s *split) int
	walk = func(s *split) int {
		idx := len(nodes)
		nodes = append(nodes, ml.TreeNode{})
		if s.leaf {
			nodes[idx] = ml.TreeNode{ClassLabel: s.class, IsLeaf: true, Confidence: 1}
			return idx
		}
		left := walk(s.left)
		right := walk(s.right)
		nodes[idx] = ml.TreeNode{FeatureIdx: s.feature, Threshold: s.threshold, LeftChild: left, RightChild: right}
		return idx
	}
	walk(s)
	return nodes
}

// Feature indices in schema order.
const (
	fRate   = 3
	fPSH    = 4
	fACK    = 5
	fSYN    = 6
	fURG    = 8
	fRST    = 9
	fHeader = 1
)

func detectorArtifact() ml.Artifact {
	attack := &split{class: 1, leaf: true}
	benign := &split{class: 0, leaf: true}
	tree := node(fRate, 1000,
		node(fSYN, 10,
			node(fRST, 5, benign, attack),
			attack),
		attack)
	return ml.Artifact{
		Format:    ml.FormatDecisionTree,
		Version:   version,
		NFeatures: flow.NumFeatures,
		Classes:   []int{0, 1},
		Nodes:     flatten(tree),
	}
}

func classifierArtifact() ml.Artifact {
	tree := node(fRate, 1000,
		node(fSYN, 10,
			node(fRST, 5,
				node(fURG, 0,
					node(fACK, 50, leaf(flow.Benign), leaf(flow.Spoofing)),
					leaf(flow.WebBased)),
				leaf(flow.Recon)),
			leaf(flow.BruteForce)),
		node(fRate, 10000,
			leaf(flow.DoS),
			node(fPSH, 0.5,
				node(fHeader, 20000, leaf(flow.DDoS), leaf(flow.Mirai)),
				leaf(flow.DDoS))))
	classes := make([]int, 0, 8)
	for c := flow.Benign; c <= flow.WebBased; c++ {
		classes = append(classes, int(c))
	}
	return ml.Artifact{
		Format:    ml.FormatDecisionTree,
		Version:   version,
		NFeatures: flow.NumFeatures,
		Classes:   classes,
		Nodes:     flatten(tree),
	}
}

// readDataset reads rows of 12 feature values followed by the class. A
// non-numeric first row is taken as a header.
func readDataset(path string) ([][]float64, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = flow.NumFeatures + 1

	var features [][]float64
	var labels []int
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, flow.NumFeatures)
		var parseErr error
		for i := range row {
			if row[i], parseErr = strconv.ParseFloat(record[i], 64); parseErr != nil {
				break
			}
		}
		if parseErr != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("line %d: %w", line, parseErr)
		}
		label, err := strconv.Atoi(record[flow.NumFeatures])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		features = append(features, row)
		labels = append(labels, label)
	}
	return features, labels, nil
}

func evaluateModel(model ml.Model, testX [][]float64, testY []int, positive int) (accuracy, precision, recall float64) {
	if len(testX) == 0 {
		return 0, 0, 0
	}

	var correct int
	var truePositive int
	var predictedPositive int
	var actualPositive int

	for i, feature := range testX {
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		if label == testY[i] {
			correct++
		}
		if label == positive {
			predictedPositive++
		}
		if testY[i] == positive {
			actualPositive++
			if label == positive {
				truePositive++
			}
		}
	}

	accuracy = float64(correct) / float64(len(testX))
	if predictedPositive > 0 {
		precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		recall = float64(truePositive) / float64(actualPositive)
	}
	return accuracy, precision, recall
}
