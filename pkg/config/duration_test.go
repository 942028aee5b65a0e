package config

import (
	"testing"
	"time"
)

func TestValidatePositiveDuration(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"lookup timeout", 60 * time.Second, false},
		{"smallest positive", time.Nanosecond, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveDuration(tt.d)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePositiveDuration(%v) error = %v, wantErr %v", tt.d, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDurationRange(t *testing.T) {
	min, max := time.Second, 2*time.Minute

	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{"source timeout default", 10 * time.Second, false},
		{"at minimum", time.Second, false},
		{"at maximum", 2 * time.Minute, false},
		{"below minimum", 100 * time.Millisecond, true},
		{"above maximum", 10 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDurationRange(tt.d, min, max)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDurationRange(%v) error = %v, wantErr %v", tt.d, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDurationRange_InvertedRange(t *testing.T) {
	if err := ValidateDurationRange(time.Second, time.Minute, time.Second); err == nil {
		t.Error("expected error for inverted range")
	}
}
