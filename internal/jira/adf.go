package jira

import "strings"

// ADFNode is one node of an Atlassian Document Format tree. Issue
// descriptions and comment bodies arrive in this shape from the v3 API.
type ADFNode struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Attrs struct {
		ShortName string `json:"shortName,omitempty"`
	} `json:"attrs,omitempty"`
	Content []ADFNode `json:"content,omitempty"`
}

// ExtractText flattens an ADF tree to plain text. Leaves contribute
// their text (emoji contribute their shortName, hard breaks a newline);
// block containers append one trailing newline when their children
// produced any text. A nil or text-less document yields "".
func ExtractText(root *ADFNode) string {
	if root == nil {
		return ""
	}
	return strings.TrimRight(extract(root), "\n")
}

func extract(n *ADFNode) string {
	switch n.Type {
	case "text":
		return n.Text
	case "emoji":
		return n.Attrs.ShortName
	case "hardBreak":
		return "\n"
	}

	var b strings.Builder
	for i := range n.Content {
		b.WriteString(extract(&n.Content[i]))
	}
	s := b.String()
	if s == "" {
		return ""
	}

	switch n.Type {
	case "paragraph", "heading", "blockquote", "listItem":
		return s + "\n"
	}
	return s
}
