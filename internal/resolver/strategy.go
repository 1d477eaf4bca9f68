package resolver

// textStrategy 是单个文本字段的一个候选来源。
type textStrategy struct {
	Source string
	Lookup func(Document) (string, bool)
}

// imageSource 是图片列表的一个候选来源；非空结果即为最终结果（来源互斥）。
type imageSource struct {
	Source string
	Lookup func(Document) []string
}

func metaText(k MetaKey) textStrategy {
	return textStrategy{
		Source: k.Value,
		Lookup: func(d Document) (string, bool) { return d.Meta(k) },
	}
}

func metaImages(source string, keys ...MetaKey) imageSource {
	return imageSource{
		Source: source,
		Lookup: func(d Document) []string { return d.MetaAll(keys...) },
	}
}

var titleStrategies = []textStrategy{
	metaText(OGTitle),
	metaText(TwitterTitle),
	{Source: "title", Lookup: func(d Document) (string, bool) { return d.Title() }},
}

var descriptionStrategies = []textStrategy{
	metaText(OGDescription),
	metaText(TwitterDescription),
	metaText(MetaDescription),
}

var imageSources = []imageSource{
	metaImages(OGImage.Value, OGImage),
	metaImages(TwitterImage.Value, TwitterImage, TwitterImageSrc),
	{Source: "img", Lookup: func(d Document) []string { return d.ImageSources() }},
}

// firstText 按顺序尝试各来源，返回第一个命中的值及其来源。
func firstText(d Document, strategies []textStrategy) (value *string, source string) {
	for _, s := range strategies {
		if v, ok := s.Lookup(d); ok {
			return &v, s.Source
		}
	}
	return nil, ""
}

// firstImages 返回第一个非空来源的全部图片；后续来源不再查询。
func firstImages(d Document, sources []imageSource) (images []string, source string) {
	for _, s := range sources {
		if v := s.Lookup(d); len(v) > 0 {
			return v, s.Source
		}
	}
	return []string{}, ""
}
