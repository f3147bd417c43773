// Package planxml loads the XML plan document of spec.md §6.3 into a
// node.Node tree, playing the role of the "Parser" client of §6.1's
// Node/NodeFactory/Catalog contract. It is a boundary decoder only: every
// domain decision (condition wrapping, scope resolution, body wiring)
// is delegated to internal/node and internal/scope.
package planxml

// xmlDoc is the root element of a plan document: exactly one top-level
// Node.
type xmlDoc struct {
	Node xmlNode `xml:"Node"`
}

type xmlNode struct {
	NodeType string `xml:"NodeType,attr"`
	NodeId   string `xml:"NodeId"`

	VariableDeclarations *xmlVarDecls  `xml:"VariableDeclarations"`
	Interface            *xmlInterface `xml:"Interface"`

	SkipCondition         *string `xml:"SkipCondition"`
	StartCondition        *string `xml:"StartCondition"`
	PreCondition          *string `xml:"PreCondition"`
	ExitCondition         *string `xml:"ExitCondition"`
	InvariantCondition    *string `xml:"InvariantCondition"`
	EndCondition          *string `xml:"EndCondition"`
	PostCondition         *string `xml:"PostCondition"`
	RepeatCondition       *string `xml:"RepeatCondition"`

	Priority *int32 `xml:"Priority"`

	NodeBody *xmlNodeBody `xml:"NodeBody"`
}

type xmlVarDecls struct {
	DeclareVariable []xmlVarDecl   `xml:"DeclareVariable"`
	DeclareArray    []xmlArrayDecl `xml:"DeclareArray"`
}

type xmlVarDecl struct {
	Name         string  `xml:"Name"`
	Type         string  `xml:"Type"`
	InitialValue *string `xml:"InitialValue"`
}

type xmlArrayDecl struct {
	Name         string  `xml:"Name"`
	Type         string  `xml:"Type"`
	MaxSize      int     `xml:"MaxSize"`
	InitialValue *string `xml:"InitialValue"`
}

type xmlInterface struct {
	In    *xmlVarDecls `xml:"In"`
	InOut *xmlVarDecls `xml:"InOut"`
}

type xmlNodeBody struct {
	NodeList        *xmlNodeList     `xml:"NodeList"`
	Assignment      *xmlAssignment   `xml:"Assignment"`
	Command         *xmlCommand      `xml:"Command"`
	Update          *xmlUpdate       `xml:"Update"`
	LibraryNodeCall *xmlLibraryCall  `xml:"LibraryNodeCall"`
}

type xmlNodeList struct {
	Node []xmlNode `xml:"Node"`
}

type xmlAssignment struct {
	LHS        string  `xml:"LHS"`
	NumericRHS *string `xml:"NumericRHS"`
	StringRHS  *string `xml:"StringRHS"`
	BooleanRHS *string `xml:"BooleanRHS"`
	ArrayRHS   *string `xml:"ArrayRHS"`
}

type xmlCommand struct {
	LHS          *string          `xml:"LHS"`
	Name         string           `xml:"Name"`
	Arguments    *xmlArguments    `xml:"Arguments"`
	ResourceList *xmlResourceList `xml:"ResourceList"`
}

type xmlArguments struct {
	Value []string `xml:"Value"`
}

type xmlResourceList struct {
	Resource []xmlResource `xml:"Resource"`
}

type xmlResource struct {
	ResourceName                 string  `xml:"ResourceName"`
	ResourcePriority             string  `xml:"ResourcePriority"`
	ResourceLowerBound           *string `xml:"ResourceLowerBound"`
	ResourceUpperBound           *string `xml:"ResourceUpperBound"`
	ResourceReleaseAtTermination *string `xml:"ResourceReleaseAtTermination"`
}

type xmlUpdate struct {
	Pair []xmlPair `xml:"Pair"`
}

type xmlPair struct {
	Name string `xml:"Name,attr"`
	Expr string `xml:",chardata"`
}

type xmlLibraryCall struct {
	NodeId string     `xml:"NodeId"`
	Alias  []xmlAlias `xml:"Alias"`
}

type xmlAlias struct {
	NodeParameter string `xml:"NodeParameter,attr"`
	Expr          string `xml:",chardata"`
}
