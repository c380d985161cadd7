package disease

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownClass is the label returned for any index or name the tables do not cover.
const UnknownClass = "Unknown Class"

// ClassIndices is the label -> model output index definition for the
// PlantVillage model. Labels use the "<Crop>__<Condition>" form.
var ClassIndices = map[string]int{
	"Apple__Apple_scab":                                 0,
	"Apple__Black_rot":                                  1,
	"Apple__Cedar_apple_rust":                           2,
	"Apple__healthy":                                    3,
	"Blueberry__healthy":                                4,
	"Cherry_(including_sour)__Powdery_mildew":           5,
	"Cherry_(including_sour)__healthy":                  6,
	"Corn_(maize)__Cercospora_leaf_spot_Gray_leaf_spot": 7,
	"Corn_(maize)__Common_rust":                         8,
	"Corn_(maize)__Northern_Leaf_Blight":                9,
	"Corn_(maize)__healthy":                             10,
	"Grape__Black_rot":                                  11,
	"Grape__Esca_(Black_Measles)":                       12,
	"Grape__Leaf_blight_(Isariopsis_Leaf_Spot)":         13,
	"Grape__healthy":                                    14,
	"Orange__Haunglongbing_(Citrus_greening)":           15,
	"Peach__Bacterial_spot":                             16,
	"Peach__healthy":                                    17,
	"Pepper,_bell__Bacterial_spot":                      18,
	"Pepper,_bell__healthy":                             19,
	"Potato__Early_blight":                              20,
	"Potato__Late_blight":                               21,
	"Potato__healthy":                                   22,
	"Raspberry__healthy":                                23,
	"Soybean__healthy":                                  24,
	"Squash__Powdery_mildew":                            25,
	"Strawberry__Leaf_scorch":                           26,
	"Strawberry__healthy":                               27,
	"Tomato__Bacterial_spot":                            28,
	"Tomato__Early_blight":                              29,
	"Tomato__Late_blight":                               30,
	"Tomato__Leaf_Mold":                                 31,
	"Tomato__Septoria_leaf_spot":                        32,
	"Tomato__Spider_mites_Two-spotted_spider_mite":      33,
	"Tomato__Target_Spot":                               34,
	"Tomato__Tomato_Yellow_Leaf_Curl_Virus":             35,
	"Tomato__Tomato_mosaic_virus":                       36,
	"Tomato__healthy":                                   37,
}

// Catalog holds the read-only lookup tables used to turn a model output
// into a diagnosis. It is built once at startup and safe for concurrent use.
type Catalog struct {
	labels    map[int]string
	diagnoses map[string]Record
}

// NewCatalog inverts the label -> index definition and cross-checks it
// against the diagnosis table.
//
// Parameters:
//   - indices: label -> model output index
//   - diagnoses: label -> diagnosis record, must contain UnknownClass
//
// Returns:
//   - *Catalog: the validated tables
//   - error: duplicate or negative indices, a label without a record,
//     a record for a label the model never emits, or a missing UnknownClass record
func NewCatalog(indices map[string]int, diagnoses map[string]Record) (*Catalog, error) {
	labels := make(map[int]string, len(indices))
	for label, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("class %q has negative index %d", label, idx)
		}
		if label == UnknownClass {
			return nil, fmt.Errorf("class index %d uses the reserved label %q", idx, UnknownClass)
		}
		if prev, ok := labels[idx]; ok {
			first, second := prev, label
			if second < first {
				first, second = second, first
			}
			return nil, fmt.Errorf("duplicate class index %d for %q and %q", idx, first, second)
		}
		labels[idx] = label
	}

	if _, ok := diagnoses[UnknownClass]; !ok {
		return nil, fmt.Errorf("diagnosis table has no %q entry", UnknownClass)
	}

	var missing, orphaned []string
	for label := range indices {
		if _, ok := diagnoses[label]; !ok {
			missing = append(missing, label)
		}
	}
	for label := range diagnoses {
		if _, ok := indices[label]; !ok && label != UnknownClass {
			orphaned = append(orphaned, label)
		}
	}
	if len(missing) > 0 || len(orphaned) > 0 {
		sort.Strings(missing)
		sort.Strings(orphaned)
		return nil, fmt.Errorf("class tables disagree: no diagnosis for [%s]; diagnosis for unknown classes [%s]",
			strings.Join(missing, ", "), strings.Join(orphaned, ", "))
	}

	records := make(map[string]Record, len(diagnoses))
	for label, rec := range diagnoses {
		records[label] = rec
	}

	return &Catalog{labels: labels, diagnoses: records}, nil
}

// Default returns the catalog built from the bundled tables.
func Default() (*Catalog, error) {
	return NewCatalog(ClassIndices, Diagnoses)
}

// Resolve maps a model output index to its label, or UnknownClass.
func (c *Catalog) Resolve(index int) string {
	if label, ok := c.labels[index]; ok {
		return label
	}
	return UnknownClass
}

// Diagnose returns the record for label, falling back to the UnknownClass record.
func (c *Catalog) Diagnose(label string) Record {
	if rec, ok := c.diagnoses[label]; ok {
		return rec
	}
	return c.diagnoses[UnknownClass]
}

// NumClasses is the number of labels the model can emit.
func (c *Catalog) NumClasses() int {
	return len(c.labels)
}
