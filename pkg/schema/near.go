package schema

// The declarations below mirror the layouts the NEAR protocol's transaction
// decoder expects. Field order and enum variant order are part of the wire
// format; changing either silently changes transaction hashes.

// TransactionGroup declares the unsigned transaction, the signed envelope and
// the action union.
func TransactionGroup() Group {
	return Group{
		Structs: []StructDef{
			{
				Name: "Transaction",
				Fields: []Field{
					{Name: "SignerID", Type: String()},
					{Name: "PublicKey", Type: Struct("PublicKey")},
					{Name: "Nonce", Type: U64()},
					{Name: "ReceiverID", Type: String()},
					{Name: "BlockHash", Type: FixedBytes(32)},
					{Name: "Actions", Type: Slice(Enum("Action"))},
				},
			},
			{
				Name: "SignedTransaction",
				Fields: []Field{
					{Name: "Transaction", Type: Struct("Transaction")},
					{Name: "Signature", Type: Struct("Signature")},
				},
			},
			{Name: "CreateAccount"},
			{
				Name: "DeployContract",
				Fields: []Field{
					{Name: "Code", Type: Bytes()},
				},
			},
			{
				Name: "FunctionCall",
				Fields: []Field{
					{Name: "MethodName", Type: String()},
					{Name: "Args", Type: Bytes()},
					{Name: "Gas", Type: U64()},
					{Name: "Deposit", Type: U128()},
				},
			},
			{
				Name: "Transfer",
				Fields: []Field{
					{Name: "Deposit", Type: U128()},
				},
			},
			{
				Name: "Stake",
				Fields: []Field{
					{Name: "Stake", Type: U128()},
					{Name: "PublicKey", Type: Struct("PublicKey")},
				},
			},
			{
				Name: "AddKey",
				Fields: []Field{
					{Name: "PublicKey", Type: Struct("PublicKey")},
					{Name: "AccessKey", Type: Struct("AccessKey")},
				},
			},
			{
				Name: "DeleteKey",
				Fields: []Field{
					{Name: "PublicKey", Type: Struct("PublicKey")},
				},
			},
			{
				Name: "DeleteAccount",
				Fields: []Field{
					{Name: "BeneficiaryID", Type: String()},
				},
			},
		},
		Enums: []EnumDef{
			{
				// Variant order is the protocol's discriminant assignment.
				Name: "Action",
				Variants: []Variant{
					{Name: "CreateAccount", Payload: "CreateAccount"},
					{Name: "DeployContract", Payload: "DeployContract"},
					{Name: "FunctionCall", Payload: "FunctionCall"},
					{Name: "Transfer", Payload: "Transfer"},
					{Name: "Stake", Payload: "Stake"},
					{Name: "AddKey", Payload: "AddKey"},
					{Name: "DeleteKey", Payload: "DeleteKey"},
					{Name: "DeleteAccount", Payload: "DeleteAccount"},
				},
			},
		},
	}
}

// CryptoGroup declares the key and signature layouts. KeyType 0 (ed25519) is
// the only scheme the replay tool produces, but the layout keeps the
// discriminant byte the protocol defines.
func CryptoGroup() Group {
	return Group{
		Structs: []StructDef{
			{
				Name: "PublicKey",
				Fields: []Field{
					{Name: "KeyType", Type: U8()},
					{Name: "Data", Type: FixedBytes(32)},
				},
			},
			{
				Name: "Signature",
				Fields: []Field{
					{Name: "KeyType", Type: U8()},
					{Name: "Data", Type: FixedBytes(64)},
				},
			},
		},
	}
}

// AccessKeyGroup declares the access-key layouts referenced by AddKey actions
func AccessKeyGroup() Group {
	return Group{
		Structs: []StructDef{
			{
				Name: "AccessKey",
				Fields: []Field{
					{Name: "Nonce", Type: U64()},
					{Name: "Permission", Type: Enum("AccessKeyPermission")},
				},
			},
			{
				Name: "FunctionCallPermission",
				Fields: []Field{
					{Name: "Allowance", Type: Option(U128())},
					{Name: "ReceiverID", Type: String()},
					{Name: "MethodNames", Type: Slice(String())},
				},
			},
			{Name: "FullAccessPermission"},
		},
		Enums: []EnumDef{
			{
				Name: "AccessKeyPermission",
				Variants: []Variant{
					{Name: "FunctionCall", Payload: "FunctionCallPermission"},
					{Name: "FullAccess", Payload: "FullAccessPermission"},
				},
			},
		},
	}
}

// NearSchemas composes all transaction-related groups into the registry the
// serializer resolves against.
func NearSchemas() (*Registry, error) {
	return NewRegistry(Compose(TransactionGroup(), CryptoGroup(), AccessKeyGroup()))
}
