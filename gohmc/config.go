package main

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// timeSeed is the seed value replaced by a clock based seed.
const timeSeed = -1

// loadConfig returns the default settings updated from a YAML file.
// The seed is timeSeed unless the file sets it.
func loadConfig(fn string) (*hmc.Config, error) {
	conf := hmc.DefaultConfig()
	conf.Seed = timeSeed
	if fn == "" {
		return conf, nil
	}
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read configuration")
	}
	if err := parseConfig(b, conf); err != nil {
		return nil, errors.Wrapf(err, "configuration file %s", fn)
	}
	log.Infof("Read configuration from %s", fn)
	return conf, nil
}

// parseConfig updates conf from YAML. Unknown fields are errors.
func parseConfig(b []byte, conf *hmc.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(conf); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// applyFlags overrides the settings with the command-line flags which
// were set.
func applyFlags(conf *hmc.Config) error {
	if *iterations >= 0 {
		conf.Iterations = *iterations
	}
	if *warmup >= 0 {
		conf.Warmup = *warmup
	}
	if *kernel != "" {
		conf.Kernel = *kernel
	}
	if *steps > 0 {
		conf.Steps = *steps
	}
	if *length > 0 {
		conf.TrajectoryLength = *length
	}
	if *stepSize > 0 {
		conf.StepSize = *stepSize
	}
	if *noSearch {
		conf.FindStepSize = false
	}
	if *targetAccept > 0 {
		conf.TargetAccept = *targetAccept
	}
	if *metric != "" {
		m, err := hmc.ParseMetric(*metric)
		if err != nil {
			return err
		}
		conf.Metric = m
	}
	if *report >= 0 {
		conf.ReportPeriod = *report
	}
	if *seed != timeSeed {
		conf.Seed = *seed
	}
	return conf.Validate()
}
