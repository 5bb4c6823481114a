package iface

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

type fakeInfo struct{ initialized bool }

func fakeType(id TypeID, failInit bool) *Type {
	return &Type{
		ID:   id,
		Name: "fake",
		Init: func(ifc *Iface, apiInfo interface{}) error {
			ifc.Info = &fakeInfo{initialized: true}
			if failInit {
				return errors.New("boom")
			}
			return nil
		},
		Reconfig: func(ifc *Iface, mask SetAttrs, common CommonAttrs, apiInfo interface{}) error {
			return nil
		},
		Fini: func(ifc *Iface) error { return nil },
	}
}

func TestCreateAndDestroy(t *testing.T) {
	r := NewRegistry()
	r.RegisterType(fakeType(1, false))

	ifc, err := r.Create(1, CommonAttrs{MTU: 1500}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ifc.ID == 0 {
		t.Fatal("expected a nonzero id")
	}
	if _, ok := r.FromID(ifc.ID); !ok {
		t.Fatal("expected to find created interface")
	}
	if err := r.Destroy(ifc.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, ok := r.FromID(ifc.ID); ok {
		t.Fatal("expected interface to be gone after destroy")
	}
}

func TestCreateFailureReleasesID(t *testing.T) {
	r := NewRegistry()
	r.RegisterType(fakeType(1, true))

	_, err := r.Create(1, CommonAttrs{}, nil)
	if err == nil {
		t.Fatal("expected Create to fail")
	}

	// The next successful create should still get a fresh id, and the
	// failed attempt must not have leaked an entry into the registry.
	r.RegisterType(fakeType(2, false))
	ifc, err := r.Create(2, CommonAttrs{}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := r.FromID(ifc.ID); !ok {
		t.Fatal("expected second interface to exist")
	}
	if len(r.ifaces) != 1 {
		t.Fatalf("expected exactly one live interface, got %d", len(r.ifaces))
	}
}

func TestDestroyUnknownID(t *testing.T) {
	r := NewRegistry()
	err := r.Destroy(42)
	if !errors.Is(err, unix.ENODEV) {
		t.Fatalf("expected ENODEV, got %v", err)
	}
}

func TestNextIteratesInIDOrder(t *testing.T) {
	r := NewRegistry()
	r.RegisterType(fakeType(1, false))
	a, _ := r.Create(1, CommonAttrs{}, nil)
	b, _ := r.Create(1, CommonAttrs{}, nil)

	got := r.Next(0, 0)
	if got == nil || got.ID != a.ID {
		t.Fatalf("expected first iteration to return %d, got %v", a.ID, got)
	}
	got = r.Next(0, a.ID)
	if got == nil || got.ID != b.ID {
		t.Fatalf("expected second iteration to return %d, got %v", b.ID, got)
	}
	if r.Next(0, b.ID) != nil {
		t.Fatal("expected iteration to terminate")
	}
}

func TestSubinterfaceLinkage(t *testing.T) {
	r := NewRegistry()
	r.RegisterType(fakeType(1, false))
	parent, _ := r.Create(1, CommonAttrs{}, nil)
	child, _ := r.Create(1, CommonAttrs{}, nil)

	r.AddSubinterface(parent, child.ID)
	if _, ok := parent.Subinterfaces[child.ID]; !ok {
		t.Fatal("expected child to be linked")
	}
	r.DelSubinterface(parent, child.ID)
	if _, ok := parent.Subinterfaces[child.ID]; ok {
		t.Fatal("expected child to be unlinked")
	}
}
