// Package potion applies potion NFTs to skulls. A potion sent to the engine
// picks one of its weighted variants and transmutes the owner's skull with
// that variant's layers.
package potion

import (
	"errors"

	"github.com/baedrik/skulls2/internal/call"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/internal/registry"
	"github.com/baedrik/skulls2/pkg/apierror"
)

// Variant is one possible outcome of a potion.
type Variant struct {
	// Layers are the traits the variant applies.
	Layers []model.LayerId `json:"layers" yaml:"layers"`
	// NormalWeight is used for skulls with two eyes and a jaw.
	NormalWeight  uint16  `json:"normal_weight" yaml:"normal_weight"`
	JawlessWeight *uint16 `json:"jawless_weight,omitempty" yaml:"jawless_weight,omitempty"`
	CyclopsWeight *uint16 `json:"cyclops_weight,omitempty" yaml:"cyclops_weight,omitempty"`
}

// Weight returns the variant's weight for a skull type.
func (v Variant) Weight(cyclops, jawless bool) uint16 {
	switch {
	case cyclops && v.CyclopsWeight != nil:
		return *v.CyclopsWeight
	case jawless && v.JawlessWeight != nil:
		return *v.JawlessWeight
	default:
		return v.NormalWeight
	}
}

// Info describes a potion as admins define it.
type Info struct {
	Name string `json:"name" yaml:"name"`
	// PotionContract is registered as a potion collection when set.
	PotionContract *string   `json:"potion_contract,omitempty" yaml:"potion_contract,omitempty"`
	SvgServer      string    `json:"svg_server" yaml:"svg_server"`
	Variants       []Variant `json:"variants" yaml:"variants"`
}

// Stored is a potion as kept in storage.
type Stored struct {
	Name      string    `json:"name"`
	SvgServer uint8     `json:"svg_server"`
	Variants  []Variant `json:"variants"`
	Halt      bool      `json:"halt"`
}

// NameIdx pairs a potion name with its index.
type NameIdx struct {
	Name  string `json:"name"`
	Index uint16 `json:"index"`
}

// State counts the potions and lists the known svg servers.
type State struct {
	PotionCount uint16   `json:"potion_count"`
	SvgServers  []string `json:"svg_servers"`
}

// SvgServer classifies and transmutes skull images.
type SvgServer interface {
	SkullType(image model.Image) (cyclops, jawless bool, err error)
	Transmute(current model.Image, layers []model.LayerId) (model.Image, error)
}

// Resolver finds the svg server at an address.
type Resolver func(c *call.Context, address string) (SvgServer, error)

var _ SvgServer = (*registry.Server)(nil)

// LocalResolver serves the deployment's own svg server address from the
// in-process registry, bound to the message's transaction.
func LocalResolver(c *call.Context, address string) (SvgServer, error) {
	settings, err := call.LoadSettings(c.Txn())
	if err != nil {
		return nil, err
	}
	if address != settings.SvgServer {
		return nil, apierror.ExternalFailure("svg server "+address, errors.New("unknown server"))
	}
	return registry.NewServer(c), nil
}
