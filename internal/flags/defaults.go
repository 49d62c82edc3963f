package flags

// DefaultValue returns the type-appropriate fallback for a flag. The mapping
// is total over the Type enum: boolean→false, string→"", number→0, json→{},
// multivariate→first variant's value. Unknown types fall through to nil.
func (d *Definition) DefaultValue() any {
	switch d.Type {
	case TypeBoolean:
		return false
	case TypeString:
		return ""
	case TypeNumber:
		return float64(0)
	case TypeJSON:
		return map[string]any{}
	case TypeMultivariate:
		if len(d.Variants) > 0 {
			return d.Variants[0].Value
		}
		return nil
	default:
		return nil
	}
}
