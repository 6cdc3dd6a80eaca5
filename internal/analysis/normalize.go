// Package analysis turns a classifier payload into sorted, categorized
// predictions and derives plain-language insights from them.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ResultKind tags how the classifier payload was interpreted.
type ResultKind string

const (
	KindClassification  ResultKind = "classification"
	KindObjectDetection ResultKind = "object_detection"
)

// Category is the coarse subject group a label falls into.
type Category string

const (
	CategoryPerson    Category = "person"
	CategoryAnimal    Category = "animal"
	CategoryFood      Category = "food"
	CategoryLandscape Category = "landscape"
	CategoryVehicle   Category = "vehicle"
	CategoryGeneral   Category = "general"
)

// categoryKeywords is checked in order; the first group with a keyword
// contained in the label wins.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryPerson, []string{"person", "man", "woman", "child", "boy", "girl"}},
	{CategoryAnimal, []string{"dog", "cat", "bird", "animal", "pet", "wildlife"}},
	{CategoryFood, []string{"food", "fruit", "vegetable", "meal", "dish"}},
	{CategoryLandscape, []string{"landscape", "beach", "mountain", "forest", "nature", "outdoor"}},
	{CategoryVehicle, []string{"car", "vehicle", "truck", "bus", "transportation"}},
}

// Box is a detection bounding box in pixel coordinates.
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Prediction is one normalized label/score pair.
type Prediction struct {
	Label      string   `json:"label"`
	Score      float64  `json:"score"`
	Percentage string   `json:"percentage"`
	Box        *Box     `json:"box,omitempty"`
	Type       string   `json:"type,omitempty"`
	Category   Category `json:"category,omitempty"`
}

// Result is the canonical form of a classifier payload.
type Result struct {
	Kind        ResultKind
	Predictions []Prediction
	// Categories is nil for object detection.
	Categories map[Category][]Prediction
}

// Categorize maps a label onto a Category by case-insensitive keyword match.
func Categorize(label string) Category {
	lower := strings.ToLower(label)
	for _, group := range categoryKeywords {
		for _, word := range group.words {
			if strings.Contains(lower, word) {
				return group.category
			}
		}
	}
	return CategoryGeneral
}

// Normalize reshapes raw prediction elements into a Result sorted by
// descending score. Elements that are not JSON objects are skipped.
func Normalize(raw []any) *Result {
	kind := detectKind(raw)
	preds := make([]Prediction, 0, len(raw))
	for _, elem := range raw {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		p := Prediction{
			Label: labelOf(obj["label"]),
			Score: scoreOf(obj["score"]),
		}
		p.Percentage = fmt.Sprintf("%.2f%%", p.Score*100)
		if kind == KindObjectDetection {
			p.Box = boxOf(obj["box"])
			p.Type = "object"
		} else {
			p.Category = Categorize(p.Label)
		}
		preds = append(preds, p)
	}

	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })

	res := &Result{Kind: kind, Predictions: preds}
	if kind == KindClassification {
		res.Categories = make(map[Category][]Prediction)
		for _, p := range preds {
			res.Categories[p.Category] = append(res.Categories[p.Category], p)
		}
	}
	return res
}

func detectKind(raw []any) ResultKind {
	if len(raw) == 0 {
		return KindClassification
	}
	for _, elem := range raw {
		obj, ok := elem.(map[string]any)
		if !ok {
			return KindClassification
		}
		if _, ok := obj["box"]; !ok {
			return KindClassification
		}
	}
	return KindObjectDetection
}

func labelOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "Unknown"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func scoreOf(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

func boxOf(v any) *Box {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &Box{
		XMin: scoreOf(obj["xmin"]),
		YMin: scoreOf(obj["ymin"]),
		XMax: scoreOf(obj["xmax"]),
		YMax: scoreOf(obj["ymax"]),
	}
}
