package constraint

// Seed returns the built-in constraint catalog the source ships with: one
// component per persisted entity class, one per block kind. It is loaded
// at startup whenever the backing file does not yet exist (spec §4.C:
// "seeded at startup with rows for every persisted entity class").
func Seed() map[string]*Component {
	components := map[string]*Component{}
	add := func(c *Component) { components[c.Name] = c }

	idProp := func() *Property {
		return newProperty("id", true, true, 1, 100).withAdditionalAllowed("_-")
	}
	nameProp := func(delims string) *Property {
		return newProperty("name", false, false, 1, 100).withNotAllowed(delims)
	}
	descProp := func(delims string) *Property {
		return newProperty("description", false, false, 0, 500).withNotAllowed(delims)
	}

	// Top-level records delimited by ';' at level 2; free text fields must
	// not contain ';' or any delimiter of a level they are nested inside.
	add(&Component{Name: "project", Properties: []*Property{
		idProp(),
		nameProp(";"),
		descProp(";"),
		newProperty("api_path", false, false, 1, 200).withAdditionalAllowed("_-/"),
	}})

	add(&Component{Name: "collection", Properties: []*Property{
		idProp(),
		nameProp(";>%#"),
		descProp(";>%#"),
	}})

	add(&Component{Name: "structure", Properties: []*Property{
		idProp(),
		nameProp(";>%|"),
		descProp(";>%|"),
		newProperty("stype", true, false, 1, 100),
		newProperty("default", false, false, 0, 5000).withNotAllowed("|"),
		newProperty("regex", false, false, 0, 500).withNotAllowed("|"),
	}})

	add(&Component{Name: "custom_structure", Properties: []*Property{
		idProp(),
		nameProp(";>#|"),
		descProp(";>#|"),
	}})

	add(&Component{Name: "data", Properties: []*Property{
		idProp(),
	}})

	add(&Component{Name: "datapair", Properties: []*Property{
		idProp(),
		newProperty("value", false, false, 0, 20000).withNotAllowed("§").withAdditionalAllowed("="),
		newProperty("dtype", true, false, 1, 100),
	}})

	add(&Component{Name: "user", Properties: []*Property{
		idProp(),
		newProperty("username", true, true, 1, 100).withAdditionalAllowed("_"),
		newProperty("email", false, false, 3, 200).withAdditionalAllowed("@.-_+"),
	}})

	add(&Component{Name: "config", Properties: []*Property{
		idProp(),
		newProperty("value", false, false, 0, 5000).withNotAllowed(";"),
	}})

	add(&Component{Name: "event", Properties: []*Property{
		idProp(),
		newProperty("label", false, false, 1, 200).withNotAllowed(";"),
	}})

	add(&Component{Name: "media", Properties: []*Property{
		idProp(),
		newProperty("filename", false, false, 1, 255).withAdditionalAllowed("._- "),
	}})

	add(&Component{Name: "route_component", Properties: []*Property{
		idProp(),
		newProperty("route_path", false, false, 1, 200).withAdditionalAllowed("_-/:{}"),
		newProperty("project_id", true, true, 1, 100).withAdditionalAllowed("_-"),
	}})

	add(&Component{Name: "auth_jwt", Properties: []*Property{
		newProperty("field", true, true, 1, 100).withAdditionalAllowed("_"),
		idProp(),
	}})

	add(&Component{Name: "body_data", Properties: []*Property{
		idProp(),
		newProperty("dtype", true, false, 1, 100),
	}})

	add(&Component{Name: "param_data", Properties: []*Property{
		newProperty("delimiter", false, false, 1, 5),
	}})

	blockKinds := []string{
		"fetch_block", "filter_block", "update_block", "create_block",
		"loop_block", "condition_block", "assignment_block",
		"template_block", "object_block", "property_block",
		"function_block", "fail_block",
	}
	for _, kind := range blockKinds {
		add(&Component{Name: kind, Properties: []*Property{
			newProperty("local_name", true, true, 1, 100).withAdditionalAllowed("_"),
			newProperty("ref_var", true, true, 0, 100).withAdditionalAllowed("_"),
			newProperty("ref_property", true, true, 0, 100).withAdditionalAllowed("_."),
			newProperty("ref_col", true, true, 0, 100).withAdditionalAllowed("_-"),
			idProp(),
		}})
	}

	return components
}
