// Package loader reads networks and orders from CSV sheets and YAML files.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chrisdamba/routesim/internal/models"
)

// ParseAttributes splits "key:value,key:value". Only the first colon
// separates key and value, so timestamps survive.
func ParseAttributes(raw string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("attribute %q is not key:value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("attribute %q has no key", pair)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}

// readSheet reads a CSV file with a header row and calls fn for every data
// row with its line number and a column lookup.
func readSheet(path string, required []string, fn func(line int, col func(string) string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		col := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if err := fn(line, col); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
}

// LoadNodesCSV reads a name,label,attributes sheet.
func LoadNodesCSV(path string) ([]*models.Node, error) {
	var nodes []*models.Node
	err := readSheet(path, []string{"name", "label"}, func(_ int, col func(string) string) error {
		if col("name") == "" {
			return fmt.Errorf("node without a name")
		}
		attrs, err := ParseAttributes(col("attributes"))
		if err != nil {
			return err
		}
		nodes = append(nodes, &models.Node{Name: col("name"), Label: col("label"), Attributes: attrs})
		return nil
	})
	return nodes, err
}

// LoadLinksCSV reads a node1,node1_label,link,attributes,node2,node2_label
// sheet. Links without an id attribute get a generated one.
func LoadLinksCSV(path string) ([]*models.Link, error) {
	var links []*models.Link
	err := readSheet(path, []string{"node1", "link", "attributes", "node2"}, func(_ int, col func(string) string) error {
		attrs, err := ParseAttributes(col("attributes"))
		if err != nil {
			return err
		}
		link, err := linkFromAttributes(col("node1"), col("node2"), col("link"), attrs)
		if err != nil {
			return err
		}
		links = append(links, link)
		return nil
	})
	return links, err
}

func linkFromAttributes(from, to, linkType string, attrs map[string]string) (*models.Link, error) {
	if from == "" || to == "" {
		return nil, fmt.Errorf("link needs both endpoints")
	}
	link := &models.Link{
		ID:          attrs["id"],
		From:        from,
		To:          to,
		Type:        linkType,
		PaymentType: attrs["paymentType"],
		OperatedBy:  attrs["operatedBy"],
	}
	name := link.ID
	if name == "" {
		name = from + "->" + to
	}
	if link.Type == "" {
		link.Type = models.DefaultLinkType
	}
	if link.PaymentType == "" {
		link.PaymentType = models.PaymentTypeBoth
	}
	if raw := attrs["cost"]; raw != "" {
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("link %s: cost: %w", name, err)
		}
		link.Cost = cost
	}
	var err error
	if link.StartDate, err = models.ParseTimestamp(attrs["startDate"]); err != nil {
		return nil, fmt.Errorf("link %s: startDate: %w", name, err)
	}
	if link.EndDate, err = models.ParseTimestamp(attrs["endDate"]); err != nil {
		return nil, fmt.Errorf("link %s: endDate: %w", name, err)
	}
	if link.EndDate.Before(link.StartDate) {
		return nil, fmt.Errorf("link %s arrives before it departs", name)
	}
	if link.ID == "" {
		link.ID = derivedLinkID(link)
	}
	for _, m := range strings.Split(attrs["restrictedMerchants"], "|") {
		if m = strings.TrimSpace(m); m != "" {
			link.RestrictedMerchants = append(link.RestrictedMerchants, m)
		}
	}
	return link, nil
}

// derivedLinkID names a link without an id attribute after its endpoints,
// schedule and carrier, so reloading the same sheet yields the same ids.
func derivedLinkID(l *models.Link) string {
	const stamp = "20060102T150405Z"
	id := fmt.Sprintf("%s-%s-%s-%s", l.From, l.To, l.StartDate.UTC().Format(stamp), l.EndDate.UTC().Format(stamp))
	if l.OperatedBy != "" {
		id += "-" + l.OperatedBy
	}
	return id
}

// LoadOrdersCSV reads a tracking_no,origin_zone,destination_zone,created_on,
// payment_type,agent_app sheet.
func LoadOrdersCSV(path string) ([]*models.Order, error) {
	var orders []*models.Order
	required := []string{"tracking_no", "origin_zone", "destination_zone", "created_on"}
	err := readSheet(path, required, func(_ int, col func(string) string) error {
		order := &models.Order{
			TrackingNo:      col("tracking_no"),
			OriginZone:      col("origin_zone"),
			DestinationZone: col("destination_zone"),
			PaymentType:     col("payment_type"),
			AgentApp:        col("agent_app"),
		}
		createdOn, err := models.ParseTimestamp(col("created_on"))
		if err != nil {
			return fmt.Errorf("order %s: created_on: %w", order.TrackingNo, err)
		}
		order.CreatedOn = createdOn
		if err := validateOrder(order); err != nil {
			return err
		}
		orders = append(orders, order)
		return nil
	})
	return orders, err
}

func validateOrder(o *models.Order) error {
	switch {
	case o.TrackingNo == "":
		return fmt.Errorf("order without a tracking number")
	case o.OriginZone == "" || o.DestinationZone == "":
		return fmt.Errorf("order %s needs an origin and a destination", o.TrackingNo)
	}
	return nil
}
