// Package alf implements the ALF file naming convention
// object.attribute[.label].extension.
package alf

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Objects produced by a conversion.
const (
	Spikes    = "spikes"
	Clusters  = "clusters"
	Channels  = "channels"
	Templates = "templates"
)

// Objects lists every object a conversion writes, in rename order.
var Objects = []string{Channels, Clusters, Spikes, Templates}

// Canonical output files.
const (
	SpikesTimes     = "spikes.times.npy"
	SpikesSamples   = "spikes.samples.npy"
	SpikesAmps      = "spikes.amps.npy"
	SpikesDepths    = "spikes.depths.npy"
	SpikesClusters  = "spikes.clusters.npy"
	SpikesTemplates = "spikes.templates.npy"

	ClustersChannels          = "clusters.channels.npy"
	ClustersPeakToTrough      = "clusters.peakToTrough.npy"
	ClustersAmps              = "clusters.amps.npy"
	ClustersUUIDs             = "clusters.uuids.csv"
	ClustersDepths            = "clusters.depths.npy"
	ClustersWaveforms         = "clusters.waveforms.npy"
	ClustersWaveformsChannels = "clusters.waveformsChannels.npy"
	ClustersMetrics           = "clusters.metrics.csv"
	ClustersProbes            = "clusters.probes.npy"
	ClustersShanks            = "clusters.shanks.npy"

	ChannelsLocalCoordinates = "channels.localCoordinates.npy"
	ChannelsProbes           = "channels.probes.npy"
	ChannelsRawInd           = "channels.rawInd.npy"

	TemplatesWaveforms         = "templates.waveforms.npy"
	TemplatesWaveformsChannels = "templates.waveformsChannels.npy"
)

// ErrInvalidName is returned by Parse for names that are not ALF names.
var ErrInvalidName = errors.New("alf: invalid file name")

// Name is a parsed ALF file name.
type Name struct {
	Object    string
	Attribute string
	Label     string
	Extension string
}

// Parse splits a base file name into its ALF parts. Both the three part
// form and the labelled four part form are accepted.
func Parse(filename string) (Name, error) {
	parts := strings.Split(filename, ".")
	for _, p := range parts {
		if p == "" {
			return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, filename)
		}
	}
	switch len(parts) {
	case 3:
		return Name{Object: parts[0], Attribute: parts[1], Extension: parts[2]}, nil
	case 4:
		return Name{Object: parts[0], Attribute: parts[1], Label: parts[2], Extension: parts[3]}, nil
	}
	return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, filename)
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(filename string) Name {
	n, err := Parse(filename)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	if n.Label == "" {
		return n.Object + "." + n.Attribute + "." + n.Extension
	}
	return n.Object + "." + n.Attribute + "." + n.Label + "." + n.Extension
}

// WithLabel returns a copy of n carrying label.
func (n Name) WithLabel(label string) Name {
	n.Label = label
	return n
}

// IsObject reports whether object is one a conversion produces.
func IsObject(object string) bool {
	return slices.Contains(Objects, object)
}

// IsObjectFile reports whether filename is an ALF name of a known object.
func IsObjectFile(filename string) bool {
	n, err := Parse(filename)
	return err == nil && IsObject(n.Object)
}

// Labelled returns filename with label inserted before the extension. An
// empty label or a name that is not a three part ALF name is returned as is.
func Labelled(filename, label string) string {
	if label == "" {
		return filename
	}
	n, err := Parse(filename)
	if err != nil || n.Label != "" {
		return filename
	}
	return n.WithLabel(label).String()
}
