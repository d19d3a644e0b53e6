package wire

type KeystoreRecord = keystoreRecord
