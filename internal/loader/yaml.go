package loader

import (
	"fmt"
	"os"
	"strconv"

	"github.com/chrisdamba/routesim/internal/models"
	"gopkg.in/yaml.v3"
)

// NetworkFile is a whole scenario in one YAML document.
type NetworkFile struct {
	Nodes  []*models.Node
	Links  []*models.Link
	Orders []*models.Order
}

type yamlLink struct {
	ID                  string   `yaml:"id"`
	From                string   `yaml:"from"`
	To                  string   `yaml:"to"`
	Type                string   `yaml:"type"`
	Cost                float64  `yaml:"cost"`
	StartDate           string   `yaml:"startDate"`
	EndDate             string   `yaml:"endDate"`
	PaymentType         string   `yaml:"paymentType"`
	RestrictedMerchants []string `yaml:"restrictedMerchants"`
	OperatedBy          string   `yaml:"operatedBy"`
}

type yamlOrder struct {
	TrackingNo      string `yaml:"trackingNo"`
	OriginZone      string `yaml:"originZone"`
	DestinationZone string `yaml:"destinationZone"`
	CreatedOn       string `yaml:"createdOn"`
	PaymentType     string `yaml:"paymentType"`
	AgentApp        string `yaml:"agentApp"`
}

type yamlNetwork struct {
	Nodes  []*models.Node `yaml:"nodes"`
	Links  []yamlLink     `yaml:"links"`
	Orders []yamlOrder    `yaml:"orders"`
}

// LoadNetworkYAML reads nodes, links and optionally orders from one file.
// Timestamps are kept as strings in the document and parsed like the CSV
// sheets.
func LoadNetworkYAML(path string) (*NetworkFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yamlNetwork
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := &NetworkFile{}
	for i, node := range doc.Nodes {
		if node == nil || node.Name == "" {
			return nil, fmt.Errorf("%s: node %d has no name", path, i)
		}
		out.Nodes = append(out.Nodes, node)
	}
	for i, l := range doc.Links {
		attrs := map[string]string{
			"id":          l.ID,
			"cost":        strconv.FormatFloat(l.Cost, 'f', -1, 64),
			"startDate":   l.StartDate,
			"endDate":     l.EndDate,
			"paymentType": l.PaymentType,
			"operatedBy":  l.OperatedBy,
		}
		link, err := linkFromAttributes(l.From, l.To, l.Type, attrs)
		if err != nil {
			return nil, fmt.Errorf("%s: link %d: %w", path, i, err)
		}
		link.RestrictedMerchants = l.RestrictedMerchants
		out.Links = append(out.Links, link)
	}
	for i, o := range doc.Orders {
		order := &models.Order{
			TrackingNo:      o.TrackingNo,
			OriginZone:      o.OriginZone,
			DestinationZone: o.DestinationZone,
			PaymentType:     o.PaymentType,
			AgentApp:        o.AgentApp,
		}
		if order.CreatedOn, err = models.ParseTimestamp(o.CreatedOn); err != nil {
			return nil, fmt.Errorf("%s: order %d: createdOn: %w", path, i, err)
		}
		if err := validateOrder(order); err != nil {
			return nil, fmt.Errorf("%s: order %d: %w", path, i, err)
		}
		out.Orders = append(out.Orders, order)
	}
	return out, nil
}
