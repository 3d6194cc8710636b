package domain

import "time"

// Index field names. Nested fields are addressed by their full path.
const (
	FieldID               = "id"
	FieldName             = "name"
	FieldNameKeyword      = "name.keyword"
	FieldArticleNumber    = "articleNumber"
	FieldContent          = "content"
	FieldChannels         = "channels"
	FieldAssortments      = "assortments"
	FieldOrganizations    = "organizations"
	FieldCategories       = "categories"
	FieldParentCategories = "parentCategories"
	FieldProductLists     = "productLists"
	FieldNewsDate         = "newsDate"

	PathTags      = "tags"
	FieldTagKey   = "tags.key"
	FieldTagValue = "tags.value"

	PathPrices           = "prices"
	FieldPriceListID     = "prices.priceListId"
	FieldPriceCountryID  = "prices.countryId"
	FieldPrice           = "prices.price"
	FieldPriceIsCampaign = "prices.isCampaignPrice"

	PathMostSold          = "mostSold"
	FieldMostSoldChannel  = "mostSold.channelId"
	FieldMostSoldQuantity = "mostSold.quantity"

	PathMainCategories          = "mainCategories"
	FieldMainCategoryAssortment = "mainCategories.assortmentId"
	FieldMainCategoryID         = "mainCategories.categoryId"

	PathCategorySortIndex  = "categorySortIndex"
	FieldCategorySortID    = "categorySortIndex.id"
	FieldCategorySortIndex = "categorySortIndex.sortIndex"

	PathProductListSortIndex  = "productListSortIndex"
	FieldProductListSortID    = "productListSortIndex.id"
	FieldProductListSortIndex = "productListSortIndex.sortIndex"
)

// Tag is one key/value pair carried by a document. A document may carry
// several values for the same key.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Price is one price record of a document.
type Price struct {
	PriceListID     string  `json:"priceListId" yaml:"priceListId"`
	CountryID       string  `json:"countryId" yaml:"countryId"`
	Price           float64 `json:"price" yaml:"price"`
	IsCampaignPrice bool    `json:"isCampaignPrice" yaml:"isCampaignPrice"`
}

// Popularity is the sold quantity of a document on one channel.
type Popularity struct {
	ChannelID string `json:"channelId" yaml:"channelId"`
	Quantity  int64  `json:"quantity" yaml:"quantity"`
}

// MainCategory links a document to its main category within an assortment.
type MainCategory struct {
	AssortmentID string `json:"assortmentId" yaml:"assortmentId"`
	CategoryID   string `json:"categoryId" yaml:"categoryId"`
}

// SortIndex is a manual position of a document inside a category or product list.
type SortIndex struct {
	ID        string `json:"id" yaml:"id"`
	SortIndex int    `json:"sortIndex" yaml:"sortIndex"`
}

// ProductDocument is the indexed unit, one per sellable item. Documents are
// written by the indexing pipeline and only read here.
type ProductDocument struct {
	ID                   string         `json:"id" yaml:"id"`
	IsBaseProduct        bool           `json:"isBaseProduct" yaml:"isBaseProduct"`
	IsVariant            bool           `json:"isVariant" yaml:"isVariant"`
	Name                 string         `json:"name" yaml:"name"`
	ArticleNumber        string         `json:"articleNumber" yaml:"articleNumber"`
	Content              string         `json:"content" yaml:"content"`
	VariantIDs           []string       `json:"variantIds" yaml:"variantIds"`
	Channels             []string       `json:"channels" yaml:"channels"`
	Assortments          []string       `json:"assortments" yaml:"assortments"`
	Organizations        []string       `json:"organizations" yaml:"organizations"`
	Categories           []string       `json:"categories" yaml:"categories"`
	ParentCategories     []string       `json:"parentCategories" yaml:"parentCategories"`
	ProductLists         []string       `json:"productLists" yaml:"productLists"`
	MainCategories       []MainCategory `json:"mainCategories" yaml:"mainCategories"`
	Tags                 []Tag          `json:"tags" yaml:"tags"`
	Prices               []Price        `json:"prices" yaml:"prices"`
	MostSold             []Popularity   `json:"mostSold" yaml:"mostSold"`
	CategorySortIndex    []SortIndex    `json:"categorySortIndex" yaml:"categorySortIndex"`
	ProductListSortIndex []SortIndex    `json:"productListSortIndex" yaml:"productListSortIndex"`
	NewsDate             *time.Time     `json:"newsDate,omitempty" yaml:"newsDate,omitempty"`
}
