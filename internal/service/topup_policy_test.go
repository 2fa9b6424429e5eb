package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpFactory_Create(t *testing.T) {
	factory := NewTopUpFactory(DefaultCustomTopUpMin, DefaultCustomTopUpMax)

	tests := []struct {
		name     string
		typ      string
		amount   int64
		wantType string
		wantErr  error
	}{
		{name: "fixed passes amount through", typ: "FIXED", amount: 50000, wantType: TopUpTypeFixed},
		{name: "fixed accepts zero", typ: "FIXED", amount: 0, wantType: TopUpTypeFixed},
		{name: "fixed accepts negative", typ: "FIXED", amount: -5, wantType: TopUpTypeFixed},
		{name: "custom lower bound", typ: "CUSTOM", amount: 10000, wantType: TopUpTypeCustom},
		{name: "custom upper bound", typ: "CUSTOM", amount: 1000000, wantType: TopUpTypeCustom},
		{name: "custom below range", typ: "CUSTOM", amount: 9999, wantErr: ErrInvalidAmount},
		{name: "custom above range", typ: "CUSTOM", amount: 1000001, wantErr: ErrInvalidAmount},
		{name: "name is case insensitive", typ: " custom ", amount: 20000, wantType: TopUpTypeCustom},
		{name: "unknown type", typ: "BONUS", amount: 20000, wantErr: ErrUnknownTopUpType},
		{name: "empty type", typ: "", amount: 20000, wantErr: ErrUnknownTopUpType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := factory.Create(tt.typ, tt.amount)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.amount, policy.Amount)
			assert.Equal(t, tt.wantType, policy.Type)
		})
	}
}

func TestCustomTopUp_Message(t *testing.T) {
	factory := NewTopUpFactory(DefaultCustomTopUpMin, DefaultCustomTopUpMax)

	_, err := factory.Create(TopUpTypeCustom, 1)
	require.Error(t, err)
	assert.Equal(t, "Custom top-up amount must be between 10,000 and 1,000,000", err.Error())
}

func TestTopUpFactory_Register(t *testing.T) {
	factory := NewTopUpFactory(DefaultCustomTopUpMin, DefaultCustomTopUpMax)
	factory.Register("promo", func(amount int64) (TopUpPolicy, error) {
		return TopUpPolicy{Amount: amount * 2, Type: "PROMO"}, nil
	})

	policy, err := factory.Create("PROMO", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), policy.Amount)
	assert.Equal(t, "PROMO", policy.Type)
}
