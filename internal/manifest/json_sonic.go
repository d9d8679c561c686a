//go:build sonic

package manifest

import (
	"github.com/bytedance/sonic"
)

// ConfigStd sorts map keys, which manifest serialization depends on.
var jsonMarshal = sonic.ConfigStd.Marshal
var jsonMarshalIndent = sonic.ConfigStd.MarshalIndent
var jsonUnmarshal = sonic.ConfigStd.Unmarshal
