// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package curate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var errNoName = errors.New("channel without a name")

// Channels is the resolved channels file: every source to collect plus
// the topic mapping the budget allocator needs.
type Channels struct {
	Sources []types.ChannelSource

	// ChannelTopics maps a channel name to its topics in file order.
	ChannelTopics map[string][]string

	TopicWeights map[string]float64
}

// LoadChannels reads and parses the channels file at path.
func LoadChannels(path string) (Channels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Channels{}, fmt.Errorf("reading channels file: %w", err)
	}
	return ParseChannels(data)
}

// ParseChannels parses a channels document (JSON or YAML). Channels listed
// under topic buckets default to YouTube; free sources must name their
// source. A channel listed in several buckets keeps every topic, in order,
// but is collected once.
func ParseChannels(data []byte) (Channels, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		trimmed = bytes.ReplaceAll(trimmed, []byte("\t"), []byte("  "))
	}
	var cfg types.ChannelsConfig
	if err := yaml.Unmarshal(trimmed, &cfg); err != nil {
		return Channels{}, fmt.Errorf("parsing channels file: %w", err)
	}

	out := Channels{
		ChannelTopics: make(map[string][]string),
		TopicWeights:  make(map[string]float64),
	}
	seen := make(map[string]bool)
	add := func(src types.ChannelSource) error {
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			return errNoName
		}
		if !src.Source.Valid() {
			return fmt.Errorf("channel %q: unknown source %q", src.Name, src.Source)
		}
		if src.Endpoint() == "" {
			return fmt.Errorf("channel %q: no url", src.Name)
		}
		if !seen[src.Name] {
			seen[src.Name] = true
			out.Sources = append(out.Sources, src)
		}
		return nil
	}

	for _, bucket := range cfg.TopicBuckets {
		topic := strings.TrimSpace(bucket.Name)
		if topic != "" {
			w := bucket.Weight
			if w <= 0 {
				w = 1
			}
			out.TopicWeights[topic] = w
		}
		for _, ch := range bucket.Channels {
			if ch.Source == "" {
				ch.Source = types.SourceYouTube
			}
			if err := add(ch); err != nil {
				return Channels{}, err
			}
			if topic != "" {
				name := strings.TrimSpace(ch.Name)
				out.ChannelTopics[name] = append(out.ChannelTopics[name], topic)
			}
		}
	}
	for _, src := range cfg.Sources {
		if err := add(src); err != nil {
			return Channels{}, err
		}
	}
	for topic, w := range cfg.TopicWeights {
		out.TopicWeights[topic] = w
	}
	return out, nil
}

// Curated returns the names of FOAMed sources.
func (c Channels) Curated() []string {
	var out []string
	for _, s := range c.Sources {
		if s.Source == types.SourceFoamed {
			out = append(out, s.Name)
		}
	}
	return out
}
