package device

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"libvirt.org/go/libvirtxml"
)

// DisplayType is the remote display protocol.
type DisplayType string

const (
	DisplayTypeSPICE DisplayType = "SPICE"
	DisplayTypeVNC   DisplayType = "VNC"
)

const (
	spiceHTML5Dir    = "/usr/share/spice-html5/"
	websockifyGrace  = 5 * time.Second
	defaultDisplayWH = "1024x768"
)

// command builds helper processes. Tests replace it.
var command = exec.Command

// Display is a SPICE or VNC console with a USB tablet and a qxl video
// adapter. A SPICE display with Web set is also served to browsers through
// websockify while the domain runs.
type Display struct {
	Base

	Type       DisplayType
	Bind       string
	Port       int
	WebPort    int
	Password   string
	Web        bool
	Resolution string
}

func (d *Display) Kind() Kind { return KindDisplay }

func (d *Display) Identity() string {
	return fmt.Sprintf("%s:%d", d.Bind, d.Port)
}

func (d *Display) IsAvailable() bool { return d.allowed(d) }

func (d *Display) Validate() ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(d.Password) == "" {
		errs.Add("password", "Password is required for display devices")
	}
	switch d.Type {
	case DisplayTypeVNC:
		if d.Web {
			errs.Add("web", "Web access is not supported for VNC display devices, please use SPICE instead")
		}
		// libvirt rejects longer VNC passwords
		if len(d.Password) > 8 {
			errs.Add("password", "Password for VNC display devices must be 8 characters or less")
		}
	case DisplayTypeSPICE:
		// websockify needs both ends fixed before the domain starts
		if d.Web && d.Port == 0 {
			errs.Add("port", "Port is required for web access to SPICE display devices")
		}
		if d.Web && d.WebPort == 0 {
			errs.Add("webPort", "Web port is required for web access to SPICE display devices")
		}
		if d.Port != 0 && d.Port == d.WebPort {
			errs.Add("port", "Spice server port must not be same as web port")
		}
	default:
		errs.Add("type", fmt.Sprintf("Not a valid choice. %q is not a supported display type", d.Type))
	}
	return errs
}

func (d *Display) resolution() (uint, uint) {
	res := d.Resolution
	if res == "" {
		res = defaultDisplayWH
	}
	w, h, _ := strings.Cut(res, "x")
	x, _ := strconv.ParseUint(w, 10, 32)
	y, _ := strconv.ParseUint(h, 10, 32)
	return uint(x), uint(y)
}

func (d *Display) Render(*Counters) Fragment {
	listeners := []libvirtxml.DomainGraphicListener{{
		Address: &libvirtxml.DomainGraphicListenerAddress{Address: d.Bind},
	}}
	autoport := ""
	if d.Port == 0 {
		autoport = "yes"
	}

	var graphic libvirtxml.DomainGraphic
	if d.Type == DisplayTypeVNC {
		graphic.VNC = &libvirtxml.DomainGraphicVNC{
			Port: d.Port, AutoPort: autoport, Passwd: d.Password, Listeners: listeners,
		}
	} else {
		graphic.Spice = &libvirtxml.DomainGraphicSpice{
			Port: d.Port, AutoPort: autoport, Passwd: d.Password, Listeners: listeners,
		}
	}

	x, y := d.resolution()
	var f Fragment
	f.Graphics = append(f.Graphics, graphic)
	f.Controllers = append(f.Controllers, libvirtxml.DomainController{Type: "usb", Model: "nec-xhci"})
	f.Inputs = append(f.Inputs, libvirtxml.DomainInput{Type: "tablet", Bus: "usb"})
	f.Videos = append(f.Videos, libvirtxml.DomainVideo{
		Model: libvirtxml.DomainVideoModel{
			Type:       "qxl",
			VGAMem:     64 * 1024,
			Ram:        128 * 1024,
			VRam:       64 * 1024,
			Resolution: &libvirtxml.DomainVideoResolution{X: x, Y: y},
		},
	})
	return f
}

// Run starts websockify for a SPICE display served on the web.
func (d *Display) Run(rc RunContext) (Release, error) {
	if d.Type != DisplayTypeSPICE || !d.Web {
		return noRelease, nil
	}

	webBind := fmt.Sprintf("%s:%d", d.Bind, d.WebPort)
	if d.Bind == "0.0.0.0" {
		webBind = fmt.Sprintf(":%d", d.WebPort)
	}
	cmd := command("websockify", "--web", spiceHTML5Dir, "--wrap-mode=ignore", webBind, d.Identity())
	if err := cmd.Start(); err != nil {
		return nil, &OperationalError{Op: "start websockify", Err: err}
	}
	rc.Log.V(1).Info("Started websockify", "pid", cmd.Process.Pid, "web", webBind, "server", d.Identity())

	return func() error {
		return stopProcess(cmd, websockifyGrace)
	}, nil
}

// stopProcess terminates cmd, killing it if it has not exited after grace.
func stopProcess(cmd *exec.Cmd, grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if err := cmd.Process.Signal(unix.SIGTERM); err != nil {
		// already exited
		<-done
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill pid %d: %w", cmd.Process.Pid, err)
		}
		<-done
		return nil
	}
}
