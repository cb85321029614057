package dialogue

// Field identifies one personal detail. Its value doubles as the suffix of the form input id.
type Field string

const (
	FirstName    Field = "firstname"
	LastName     Field = "lastname"
	Birthday     Field = "birthday"
	PlaceOfBirth Field = "placeofbirth"
	Address      Field = "address"
	City         Field = "city"
	ZipCode      Field = "zipcode"
)

// Fields lists the required details in the order they are asked.
var Fields = []Field{FirstName, LastName, Birthday, PlaceOfBirth, Address, City, ZipCode}

var labels = map[Field]string{
	FirstName:    "First Name",
	LastName:     "Last Name",
	Birthday:     "Birthday (DD/MM/YYYY)",
	PlaceOfBirth: "Place of Birth",
	Address:      "Address",
	City:         "City",
	ZipCode:      "Postal Code",
}

// Label is the human-readable name used in prompts.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// FieldNames returns the field identifiers as plain strings.
func FieldNames() []string {
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = string(f)
	}
	return out
}
