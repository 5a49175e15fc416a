package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/wyrmtable/internal/platform/id"
)

// Template is a saved combatant group the DM can launch encounters from.
type Template struct {
	ID         string
	CampaignID string
	Name       string
	Combatants []Combatant
	CreatedAt  time.Time
}

// CreateTemplate creates a reusable encounter template.
func CreateTemplate(campaignID, name string, combatants []Combatant, now func() time.Time, idGenerator func() (string, error)) (Template, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Template{}, ErrEmptyName
	}

	templateID, err := idGenerator()
	if err != nil {
		return Template{}, fmt.Errorf("generate template id: %w", err)
	}

	copied := make([]Combatant, len(combatants))
	copy(copied, combatants)

	return Template{
		ID:         templateID,
		CampaignID: campaignID,
		Name:       name,
		Combatants: copied,
		CreatedAt:  now().UTC(),
	}, nil
}
