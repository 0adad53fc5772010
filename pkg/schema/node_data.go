package schema

import (
	"encoding/json"
	"fmt"
)

// NodeData is the type-specific payload of a Node. The concrete type always
// matches Node.Type; see DataFor.
type NodeData interface {
	NodeType() NodeType
}

// StartData is the payload of a Start node.
type StartData struct{}

// EndData is the payload of an End node.
type EndData struct {
	WasSuccessful bool `json:"wasSuccessful"`
}

// RoutineListData is the payload of a RoutineList node.
type RoutineListData struct {
	IsOrdered  bool              `json:"isOrdered"`
	IsOptional bool              `json:"isOptional,omitempty"`
	Items      []RoutineListItem `json:"items"`
}

// DecisionData is the payload of a Decision node.
type DecisionData struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

// LoopData is the payload of a Loop node.
type LoopData struct {
	MaxLoops  int         `json:"maxLoops,omitempty"`
	Operation string      `json:"operation,omitempty"`
	Whiles    []Condition `json:"whiles,omitempty"`
}

// RedirectData is the payload of a Redirect node.
type RedirectData struct {
	TargetNodeID string `json:"targetNodeId,omitempty"`
}

// CombineData is the payload of a Combine node.
type CombineData struct {
	FromIDs []string `json:"fromIds,omitempty"`
}

func (StartData) NodeType() NodeType       { return NodeTypeStart }
func (EndData) NodeType() NodeType         { return NodeTypeEnd }
func (RoutineListData) NodeType() NodeType { return NodeTypeRoutineList }
func (DecisionData) NodeType() NodeType    { return NodeTypeDecision }
func (LoopData) NodeType() NodeType        { return NodeTypeLoop }
func (RedirectData) NodeType() NodeType    { return NodeTypeRedirect }
func (CombineData) NodeType() NodeType     { return NodeTypeCombine }

// DataFor decodes raw into the payload variant for t. Empty input yields the
// zero payload of that variant.
func DataFor(t NodeType, raw json.RawMessage) (NodeData, error) {
	var data NodeData
	switch t {
	case NodeTypeStart:
		data = &StartData{}
	case NodeTypeEnd:
		data = &EndData{}
	case NodeTypeRoutineList:
		data = &RoutineListData{}
	case NodeTypeDecision:
		data = &DecisionData{}
	case NodeTypeLoop:
		data = &LoopData{}
	case NodeTypeRedirect:
		data = &RedirectData{}
	case NodeTypeCombine:
		data = &CombineData{}
	default:
		return nil, NewErrorf(ErrCodeValidation, "unknown node type %q", t)
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, NewErrorf(ErrCodeValidation, "invalid %s data: %s", t, err.Error()).WithCause(err)
		}
	}
	return deref(data), nil
}

// deref stores payloads by value so that copies of a Node never alias a payload.
func deref(d NodeData) NodeData {
	switch v := d.(type) {
	case *StartData:
		return *v
	case *EndData:
		return *v
	case *RoutineListData:
		return *v
	case *DecisionData:
		return *v
	case *LoopData:
		return *v
	case *RedirectData:
		return *v
	case *CombineData:
		return *v
	}
	return d
}

// UnmarshalJSON decodes a node, selecting the data variant from the type tag.
func (n *Node) UnmarshalJSON(b []byte) error {
	type alias Node
	aux := struct {
		*alias
		Data json.RawMessage `json:"data,omitempty"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := DataFor(n.Type, aux.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	n.Data = data
	return nil
}

// RoutineList returns the node's RoutineList payload, if it has one.
func (n *Node) RoutineList() (RoutineListData, bool) {
	d, ok := n.Data.(RoutineListData)
	return d, ok
}

// NewNode creates a node of the given type with its zero payload.
func NewNode(id string, t NodeType) Node {
	data, _ := DataFor(t, nil)
	return Node{ID: id, Type: t, Data: data}
}
