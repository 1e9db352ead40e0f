package tool

import (
	"github.com/cloudwego/eino/schema"
)

var dataTypes = map[string]schema.DataType{
	"string":  schema.String,
	"integer": schema.Integer,
	"number":  schema.Number,
	"boolean": schema.Boolean,
	"object":  schema.Object,
	"array":   schema.Array,
}

// ToolInfo 转换为 eino 的工具描述，用于 ChatModel.WithTools
func (d Definition) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.Params))
	for name, p := range d.Params {
		dt, ok := dataTypes[p.Type]
		if !ok {
			dt = schema.String
		}
		params[name] = &schema.ParameterInfo{
			Type:     dt,
			Desc:     p.Desc,
			Enum:     p.Enum,
			Required: p.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// ToolInfos 批量转换
func ToolInfos(defs []Definition) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(defs))
	for _, d := range defs {
		infos = append(infos, d.ToolInfo())
	}
	return infos
}
