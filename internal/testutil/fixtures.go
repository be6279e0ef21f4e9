package testutil

import "github.com/Veraticus/contact-sync/internal/model"

// IdentitySeed describes an identity to create in a test registry.
type IdentitySeed struct {
	Name       string
	Phone      string
	Attributes model.Attributes
}

// StandardRegistry is a small registry used across integration tests.
func StandardRegistry() []IdentitySeed {
	return []IdentitySeed{
		{Name: "John Doe", Phone: "9876543210"},
		{Name: "ABC Company Ltd", Phone: "5555555555", Attributes: model.Attributes{
			{Key: "City", Value: model.StringValue("Mumbai")},
		}},
		{Name: "Priya Sharma", Phone: "9822012345"},
	}
}
