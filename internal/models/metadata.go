package models

import "fmt"

// File types recorded in ImportMetadata.
const (
	FileTypeRaw       = "raw"
	FileTypeMetaImage = "metaimage"
	FileTypeNumpy     = "numpy"
	FileTypeTIFF      = "tiff"
)

// ImportMetadata describes a loaded volume. It is created empty by the caller,
// filled in by the loader and kept afterwards by display and export code.
type ImportMetadata struct {
	FileType    string      `yaml:"fileType,omitempty"`
	Dimensions  []int       `yaml:"dimensions,omitempty,flow"`
	MemoryOrder MemoryOrder `yaml:"isFortran"`

	// IsBigEndian is nil when byte order does not apply (single byte samples).
	IsBigEndian *bool `yaml:"isBigEndian"`

	ElementType ElementType `yaml:"typeCode"`
	BitDepth    string      `yaml:"volBitDepth,omitempty"`
	Shape       []int       `yaml:"shape,omitempty,flow"`
	Resampled   bool        `yaml:"sampled"`

	// HeaderLength is the size of the file header preceding the samples.
	HeaderLength int `yaml:"headerLength"`

	// NumpyFile is set when the volume was also written as .npy.
	NumpyFile string `yaml:"numpyFile,omitempty"`
}

// MarshalYAML stores the memory order as the isFortran boolean.
func (o MemoryOrder) MarshalYAML() (interface{}, error) {
	return o == ColumnMajor, nil
}

// UnmarshalYAML reads the isFortran boolean.
func (o *MemoryOrder) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var fortran bool
	if err := unmarshal(&fortran); err != nil {
		return err
	}
	*o = RowMajor
	if fortran {
		*o = ColumnMajor
	}
	return nil
}

// Map returns the string keyed view of the metadata.
func (m *ImportMetadata) Map() map[string]interface{} {
	out := map[string]interface{}{
		"fileType":     m.FileType,
		"dimensions":   m.Dimensions,
		"isFortran":    m.MemoryOrder == ColumnMajor,
		"typeCode":     int(m.ElementType),
		"volBitDepth":  m.BitDepth,
		"shape":        m.Shape,
		"sampled":      m.Resampled,
		"headerLength": m.HeaderLength,
	}
	if m.IsBigEndian != nil {
		out["isBigEndian"] = *m.IsBigEndian
	} else {
		out["isBigEndian"] = nil
	}
	if m.NumpyFile != "" {
		out["numpyFile"] = m.NumpyFile
	}
	return out
}

// Descriptor rebuilds the raw layout recorded by an earlier raw import, so
// the same file can be loaded again without asking for it.
func (m *ImportMetadata) Descriptor() (VolumeDescriptor, error) {
	if m == nil || m.FileType != FileTypeRaw {
		return VolumeDescriptor{}, fmt.Errorf("metadata does not describe a raw file")
	}
	d := VolumeDescriptor{
		Dimensions:  append([]int(nil), m.Dimensions...),
		ElementType: m.ElementType,
		MemoryOrder: m.MemoryOrder,
	}
	if m.IsBigEndian != nil && *m.IsBigEndian {
		d.ByteOrder = BigEndian
	}
	return d, d.Validate()
}

// SetByteOrder records the byte order, leaving it unset for single byte types.
func (m *ImportMetadata) SetByteOrder(t ElementType, o ByteOrder) {
	if t.Size() == 1 {
		m.IsBigEndian = nil
		return
	}
	big := o == BigEndian
	m.IsBigEndian = &big
}
