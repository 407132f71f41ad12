package metadata

import (
	"strings"
	"testing"

	"libvirt.org/go/libvirtxml"
)

func TestRecord_String(t *testing.T) {
	r := Record{Kind: "VirtualMachine", Name: `web"<1>`}

	got := r.String()
	want := `<crucible:resource xmlns:crucible="http://crucible.jbweber.dev/v1alpha1" kind="VirtualMachine" name="web&#34;&lt;1&gt;"/>`
	if got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestSetGet(t *testing.T) {
	d := &libvirtxml.Domain{}
	Set(d, Record{Kind: "Container", Name: "db"})

	r, ok, err := Get(d)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok {
		t.Fatal("Get() found no record")
	}
	if r.Kind != "Container" || r.Name != "db" {
		t.Errorf("Get() = %+v", r)
	}
}

func TestGet_RoundTripThroughLibvirtXML(t *testing.T) {
	d := &libvirtxml.Domain{Type: "kvm", Name: "0f0e0d0c-0b0a-4908-8706-050403020100"}
	Set(d, Record{Kind: "VirtualMachine", Name: "web"})

	doc, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !strings.Contains(doc, "<metadata>") {
		t.Fatalf("marshaled domain has no metadata:\n%s", doc)
	}

	var parsed libvirtxml.Domain
	if err := parsed.Unmarshal(doc); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	r, ok, err := Get(&parsed)
	if err != nil || !ok {
		t.Fatalf("Get() = %+v, %v, %v", r, ok, err)
	}
	if r.Name != "web" {
		t.Errorf("Name = %q, want web", r.Name)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		metadata *libvirtxml.DomainMetadata
		wantOK   bool
		wantName string
		wantErr  bool
	}{
		{name: "no metadata"},
		{name: "empty metadata", metadata: &libvirtxml.DomainMetadata{}},
		{
			name:     "other tools",
			metadata: &libvirtxml.DomainMetadata{XML: `<app:vm xmlns:app="http://example.com/app" name="x"/>`},
		},
		{
			name: "alongside other tools",
			metadata: &libvirtxml.DomainMetadata{XML: `<app:vm xmlns:app="http://example.com/app"/>` +
				`<c:resource xmlns:c="http://crucible.jbweber.dev/v1alpha1" kind="Container" name="db"/>`},
			wantOK:   true,
			wantName: "db",
		},
		{
			name:     "same local name in another namespace",
			metadata: &libvirtxml.DomainMetadata{XML: `<x:resource xmlns:x="http://example.com/x" name="nope"/>`},
		},
		{
			name:     "malformed",
			metadata: &libvirtxml.DomainMetadata{XML: `<crucible:resource xmlns:crucible="http://crucible.jbweber.dev/v1alpha1"`},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok, err := Get(&libvirtxml.Domain{Metadata: tt.metadata})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if r.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", r.Name, tt.wantName)
			}
		})
	}
}
