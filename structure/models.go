package structure

// Unit is the common shape of every organizational level.
type Unit struct {
	ID   int64
	Nom  string
	Code string
}

// Region is the top organizational level.
type Region struct {
	Unit
}

// Supervision groups branches inside a region.
type Supervision struct {
	Unit
	RegionID int64
}

// Branch is the lowest organizational level; agents and branch chiefs belong to one.
type Branch struct {
	Unit
	SupervisionID int64
}
