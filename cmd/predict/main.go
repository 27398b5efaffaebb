package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"iotdetect/config"
	"iotdetect/detection"
	"iotdetect/flow"
	"iotdetect/ml"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	vector := flag.String("vector", "", "12 comma-separated feature values in schema order")
	classify := flag.Bool("classify", false, "name the attack family as well as detecting it")
	asJSON := flag.Bool("json", false, "print the full result as JSON")

	in := flow.DefaultInput()
	flag.Float64Var(&in.FlowDuration, "flow_duration", 0, "flow duration")
	flag.Float64Var(&in.HeaderLength, "header_length", 0, "header length")
	flag.IntVar(&in.ProtocolType, "protocol_type", 0, "protocol number")
	flag.Float64Var(&in.Rate, "rate", 0, "flow rate")
	flag.StringVar(&in.PSHFlag, "psh_flag", in.PSHFlag, "is the PSH flag set (Yes or No)")
	flag.IntVar(&in.ACKCount, "ack_count", 0, "ACK count")
	flag.IntVar(&in.SYNCount, "syn_count", 0, "SYN count")
	flag.IntVar(&in.FINCount, "fin_count", 0, "FIN count")
	flag.IntVar(&in.URGCount, "urg_count", 0, "URG count")
	flag.IntVar(&in.RSTCount, "rst_count", 0, "RST count")
	flag.Float64Var(&in.TotalSize, "tot_size", 0, "total size of packets")
	flag.Float64Var(&in.IAT, "iat", 0, "inter-arrival time between packets")
	flag.Parse()

	cfg, err := config.Load(config.Find(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	v, err := buildVector(*vector, in)
	if err != nil {
		log.Fatalf("invalid input: %v", err)
	}

	pipeline, err := loadPipeline(cfg)
	if err != nil {
		log.Fatalf("failed to load models: %v", err)
	}

	ctx := context.Background()
	var result detection.Result
	if *classify {
		result, err = pipeline.Classify(ctx, v)
	} else {
		result, err = pipeline.Detect(ctx, v)
	}
	if err != nil {
		log.Fatalf("prediction failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("failed to encode result: %v", err)
		}
		return
	}
	fmt.Println(result.Banner)
	if result.Classified {
		fmt.Println(result.Label)
	}
}

func buildVector(raw string, in flow.Input) (flow.Vector, error) {
	if raw == "" {
		f, err := in.Features()
		if err != nil {
			return flow.Vector{}, err
		}
		return flow.BuildVector(f), nil
	}
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return flow.Vector{}, fmt.Errorf("%w: value %d: %v", flow.ErrInvalidFeature, i, err)
		}
		values = append(values, x)
	}
	return flow.VectorFromSlice(values)
}

func loadPipeline(cfg *config.Config) (detection.Pipeline, error) {
	classifier, _, err := ml.LoadModel(cfg.Model.ClassifierPath, flow.NumFeatures)
	if err != nil {
		return nil, err
	}
	opts := detection.Options{Policy: cfg.Policy()}
	if cfg.Model.Mode == detection.ModeSingleStage {
		return detection.NewSingleStage(classifier, opts), nil
	}
	detector, _, err := ml.LoadModel(cfg.Model.DetectorPath, flow.NumFeatures)
	if err != nil {
		return nil, err
	}
	return detection.NewTwoStage(detector, classifier, opts), nil
}
