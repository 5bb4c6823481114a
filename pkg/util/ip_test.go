package util

import "testing"

func TestParseIPv4(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"192.0.2.1", false},
		{"0.0.0.0", false},
		{"255.255.255.255", false},
		{"::1", true},
		{"not-an-ip", true},
		{"2001:db8::1", true},
	}
	for _, c := range cases {
		_, err := ParseIPv4(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseIPv4(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
		}
	}
}

func TestIsValidMACAddress(t *testing.T) {
	if !IsValidMACAddress("02:00:00:00:00:01") {
		t.Error("expected valid MAC to parse")
	}
	if IsValidMACAddress("not-a-mac") {
		t.Error("expected invalid MAC to fail")
	}
}

func TestValidateVLANID(t *testing.T) {
	if err := ValidateVLANID(1); err != nil {
		t.Errorf("vlan 1 should be valid: %v", err)
	}
	if err := ValidateVLANID(4094); err != nil {
		t.Errorf("vlan 4094 should be valid: %v", err)
	}
	if err := ValidateVLANID(0); err == nil {
		t.Error("vlan 0 should be invalid")
	}
	if err := ValidateVLANID(4095); err == nil {
		t.Error("vlan 4095 should be invalid")
	}
}

func TestValidateMTU(t *testing.T) {
	if err := ValidateMTU(1500); err != nil {
		t.Errorf("mtu 1500 should be valid: %v", err)
	}
	if err := ValidateMTU(67); err == nil {
		t.Error("mtu 67 should be invalid")
	}
	if err := ValidateMTU(9217); err == nil {
		t.Error("mtu 9217 should be invalid")
	}
}
