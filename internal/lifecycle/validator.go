package lifecycle

import (
	"fmt"

	"github.com/jbweber/crucible/internal/device"
)

// Validate collects every reason the devices cannot start right now. Each
// unavailable device contributes one error, followed by whatever its start
// checks report. All devices are checked.
func Validate(devices []device.Device, sc device.StartContext) device.ValidationErrors {
	var errs device.ValidationErrors
	for _, d := range devices {
		if !d.IsAvailable() {
			errs.Add("device."+d.Identity(), fmt.Sprintf("Device %s is not available", d.Identity()))
		}
		errs = append(errs, d.ValidateStart(sc)...)
	}
	return errs
}
