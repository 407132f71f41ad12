package device

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
)

// describedDomain is the slice of a domain's XML the conflict scan reads.
// libvirtxml is not used here: it drops the USB vendor/product ids and
// refuses hostdevs it cannot classify, and a partial decode must not fail
// the whole scan.
type describedDomain struct {
	Name     string `xml:"name"`
	Hostdevs []describedHostdev `xml:"devices>hostdev"`
}

type describedHostdev struct {
	Mode   string `xml:"mode,attr"`
	Type   string `xml:"type,attr"`
	Source struct {
		Vendor  describedID       `xml:"vendor"`
		Product describedID       `xml:"product"`
		Address *describedAddress `xml:"address"`
	} `xml:"source"`
}

type describedID struct {
	ID string `xml:"id,attr"`
}

type describedAddress struct {
	Domain   string `xml:"domain,attr"`
	Bus      string `xml:"bus,attr"`
	Slot     string `xml:"slot,attr"`
	Function string `xml:"function,attr"`
	Device   string `xml:"device,attr"`
}

// hostdevMatcher reports whether a hostdev in another domain refers to the
// same host resource as the device being validated.
type hostdevMatcher func(h describedHostdev) bool

// scanConflicts looks for d's resource in every other active domain. Failures
// talking to libvirt are logged and treated as no conflict.
func scanConflicts(sc StartContext, d Device, match hostdevMatcher) ValidationErrors {
	if sc.Domains == nil {
		return nil
	}
	log := sc.Log.WithValues("device", d.Identity())

	self, _ := uuid.Parse(sc.DomainUUID)

	domains, _, err := sc.Domains.ConnectListAllDomains(1, libvirt.ConnectListDomainsActive)
	if err != nil {
		log.Error(err, "Failed to check device conflicts")
		return nil
	}

	for _, dom := range domains {
		if uuid.UUID(dom.UUID) == self {
			continue
		}

		desc, err := sc.Domains.DomainGetXMLDesc(dom, 0)
		if err != nil {
			log.Error(err, "Failed to check device conflicts", "domain", dom.Name)
			return nil
		}

		var parsed describedDomain
		if err := xml.Unmarshal([]byte(desc), &parsed); err != nil {
			log.Error(err, "Failed to check device conflicts", "domain", dom.Name)
			return nil
		}

		for _, h := range parsed.Hostdevs {
			if match(h) {
				var errs ValidationErrors
				errs.Add(
					"device."+d.Identity(),
					fmt.Sprintf("%s device is already in use by VM %s", d.Kind(), dom.Name),
				)
				return errs
			}
		}
	}

	return nil
}

// sameNumber compares two numeric XML attributes, accepting both decimal and
// 0x-prefixed hex. Unparseable or empty values never match.
func sameNumber(a, b string, base int) bool {
	x, ok := parseNumber(a, base)
	if !ok {
		return false
	}
	y, ok := parseNumber(b, base)
	return ok && x == y
}

func parseNumber(s string, base int) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
