package settings

import (
	"github.com/mitchellh/mapstructure"

	"github.com/matzehuels/wkimage/pkg/errors"
)

// Decode overlays the values in m onto img. Keys use the engine's names
// ("screenWidth", "loadPage": {"jsdelay": ...}). Strings are converted to
// numbers and booleans where needed; unknown keys are rejected.
func Decode(m map[string]any, img *Image) error {
	if len(m) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           img,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "build settings decoder")
	}
	if err := dec.Decode(m); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSettings, err, "decode settings")
	}
	return nil
}
