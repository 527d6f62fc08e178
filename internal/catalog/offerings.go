package catalog

// Component is one group of tests inside a package.
type Component struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Offering is a package as shown in the comparison table and the form select.
type Offering struct {
	Package
	Title           string      `json:"title"`
	OriginalPrice   int         `json:"originalPrice"`
	DiscountPercent int         `json:"discountPercent"`
	TestCount       int         `json:"testCount"`
	Components      []Component `json:"components"`
}

var offerings = []Offering{
	{
		Title:           "Essential",
		OriginalPrice:   1199,
		DiscountPercent: 17,
		TestCount:       66,
		Package:         mustParse("ESSENTIAL PACKAGE~999~PROJ1052742~280~1~10~1~0"),
		Components: []Component{
			{"Complete Hemogram", 28},
			{"Liver Function", 12},
			{"Lipid Profile", 10},
			{"Kidney Function", 9},
			{"Thyroid Profile", 3},
			{"Diabetes", 2},
			{"Iron Deficiency", 2},
		},
	},
	{
		Title:           "Comprehensive",
		OriginalPrice:   1699,
		DiscountPercent: 12,
		TestCount:       78,
		Package:         mustParse("COMPREHENSIVE PACKAGE~1499~PROJ1052743~480~1~10~1~0"),
		Components: []Component{
			{"Complete Hemogram", 28},
			{"Liver Function", 12},
			{"Lipid Profile", 10},
			{"Kidney Function", 9},
			{"Thyroid Profile", 3},
			{"Diabetes", 4},
			{"Iron Deficiency", 4},
			{"Vitamins", 2},
			{"Electrolytes", 3},
			{"Cardiac Risk Markers", 3},
		},
	},
	{
		Title:           "Couple",
		OriginalPrice:   3398,
		DiscountPercent: 7,
		TestCount:       98,
		Package:         mustParse("COUPLE PACKAGE~1575~PROJ1052746~585~2~2~2~0"),
		Components: []Component{
			{"Complete Hemogram", 28},
			{"Liver Function", 12},
			{"Lipid Profile", 10},
			{"Kidney Function", 9},
			{"Thyroid Profile", 3},
			{"Diabetes", 4},
			{"Iron Deficiency", 4},
			{"Vitamins", 2},
			{"Electrolytes", 3},
			{"Cardiac Risk Markers", 3},
			{"Arthritis", 2},
			{"Pancreas", 2},
			{"Urine Routine", 16},
		},
	},
	{
		Title:           "Male Full Checkup",
		OriginalPrice:   2599,
		DiscountPercent: 15,
		TestCount:       103,
		Package:         mustParse("MALE FULL CHECKUP~2200~PROJ1052744~760~1~10~1~0"),
		Components: []Component{
			{"Complete Hemogram", 28},
			{"Liver Function", 12},
			{"Lipid Profile", 10},
			{"Kidney Function", 9},
			{"Thyroid Profile", 3},
			{"Diabetes", 4},
			{"Iron Deficiency", 4},
			{"Vitamins", 2},
			{"Electrolytes", 3},
			{"Cardiac Risk Markers", 5},
			{"Urine Routine", 16},
			{"Testosterone", 1},
			{"PSA", 1},
			{"Hormones", 5},
		},
	},
	{
		Title:           "Female Full Checkup",
		OriginalPrice:   2799,
		DiscountPercent: 14,
		TestCount:       105,
		Package:         mustParse("FEMALE FULL CHECKUP~2400~PROJ1052745~840~1~10~1~0"),
		Components: []Component{
			{"Complete Hemogram", 28},
			{"Liver Function", 12},
			{"Lipid Profile", 10},
			{"Kidney Function", 9},
			{"Thyroid Profile", 3},
			{"Diabetes", 4},
			{"Iron Deficiency", 4},
			{"Vitamins", 2},
			{"Electrolytes", 3},
			{"Cardiac Risk Markers", 5},
			{"Urine Routine", 16},
			{"Hormones", 8},
			{"Calcium", 1},
		},
	},
}

func mustParse(raw string) Package {
	pkg, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return pkg
}

// Offerings returns a copy of the package catalog in display order.
func Offerings() []Offering {
	out := make([]Offering, len(offerings))
	copy(out, offerings)
	return out
}

// Lookup finds an offering by product code.
func Lookup(productCode string) (Offering, error) {
	for _, o := range offerings {
		if o.ProductCode == productCode {
			return o, nil
		}
	}
	return Offering{}, ErrUnknownPackage
}
